package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/landscape"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "bda.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventRoundTrip(t *testing.T) {
	db := openTestDB(t)
	in := &epidemic.Outcome{
		Time:                20,
		AgentName:           "budworm",
		ROS:                 3,
		SitesDamaged:        12,
		CohortsKilled:       40,
		BiomassKilled:       123456,
		MeanSeverity:        2.25,
		SelectedAreas:       []uint32{1, 2},
		CohortsKilledInArea: []int{10, 5},
		SitesDamagedInArea:  []int{3, 2},
		BiomassKilledInArea: []int64{1000, 500},
	}
	if err := db.SaveEvent("run-1", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveEvent("run-1", &epidemic.Outcome{Time: 10, AgentName: "barkbeetle"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := db.Events("", "", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 2 || rows[0].AgentName != "barkbeetle" {
		t.Fatalf("rows not in time order: %+v", rows)
	}

	rows, err = db.Events("run-1", "budworm", 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != "run-1" {
		t.Fatalf("filtered rows: %+v", rows)
	}
	out, err := rows[0].Outcome()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.CohortsKilled != 40 || out.MeanSeverity != 2.25 || out.BiomassKilledInArea[1] != 500 || out.SelectedAreas[0] != 1 {
		t.Fatalf("decoded outcome: %+v", out)
	}
}

func TestEmptyAreaArraysDecode(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveEvent("r", &epidemic.Outcome{Time: 10, AgentName: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows, err := db.Events("r", "x", 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("events: %v %d", err, len(rows))
	}
	if rows[0].CohortsKilledInMA != "[]" {
		t.Fatalf("empty array stored as %q", rows[0].CohortsKilledInMA)
	}
	if _, err := rows[0].Outcome(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("seed", "42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveMeta("seed", "43"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := db.GetMeta("seed")
	if err != nil || v != "43" {
		t.Fatalf("get: %q %v", v, err)
	}
	all, err := db.AllMeta()
	if err != nil || len(all) != 1 {
		t.Fatalf("all: %v %v", all, err)
	}
	if _, err := db.GetMeta("missing"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestSaveSiteState(t *testing.T) {
	db := openTestDB(t)
	g := landscape.NewGrid(2, 2, 100)
	g.SetActive(landscape.Location{Row: 1, Col: 1}, false)
	c := g.Cells[1]
	c.Disturbed = true
	c.TimeOfLastEvent = 30
	c.AgentName = "budworm"
	c.ConiferKills[30] = 4

	if err := db.SaveSiteState(g); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving twice replaces rather than duplicating.
	if err := db.SaveSiteState(g); err != nil {
		t.Fatalf("save again: %v", err)
	}
	row, err := db.SiteState(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !row.Disturbed || row.TimeOfLastEvent != 30 || row.AgentName != "budworm" || row.ConiferKillsJSON != `{"30":4}` {
		t.Fatalf("row: %+v", row)
	}
	if _, err := db.SiteState(3); err == nil {
		t.Fatalf("inactive cell was saved")
	}
}

func TestEventsScopedToRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bda.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.BeginRun("run-a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := first.SaveMeta("seed", "7"); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if err := first.SaveEvent("run-a", &epidemic.Outcome{Time: 10, AgentName: "budworm"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	first.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if err := db.BeginRun("run-b"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := db.SaveEvent("run-b", &epidemic.Outcome{Time: 20, AgentName: "budworm"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	run, err := db.CurrentRun()
	if err != nil || run != "run-b" {
		t.Fatalf("current run: %q %v", run, err)
	}
	rows, err := db.Events(run, "", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != "run-b" || rows[0].Time != 20 {
		t.Fatalf("run-b events: %+v", rows)
	}
	if all, err := db.Events("", "", 0); err != nil || len(all) != 2 {
		t.Fatalf("all runs: %d %v", len(all), err)
	}
	if _, err := db.GetMeta("seed"); err == nil {
		t.Fatalf("metadata of the previous run survived BeginRun")
	}
}
