package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/forest-bda/internal/persistence"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q): got %v want %v", in, got, want)
		}
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("BDA_TEST_VALUE", "x")
	if got := envOr("BDA_TEST_VALUE", "y"); got != "x" {
		t.Fatalf("got %q want x", got)
	}
	if got := envOr("BDA_TEST_UNSET", "y"); got != "y" {
		t.Fatalf("got %q want y", got)
	}
}

func TestSaveMeta(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "bda.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := saveMeta(db, map[string]string{"last_year": "100", "time_of_next.budworm": "120"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, err := db.GetMeta("time_of_next.budworm"); err != nil || v != "120" {
		t.Fatalf("get: %q %v", v, err)
	}

	db.Close()
	err = saveMeta(db, map[string]string{"last_year": "110"})
	if err == nil || !strings.Contains(err.Error(), "last_year") {
		t.Fatalf("write to a closed db: got %v want error naming the key", err)
	}
}
