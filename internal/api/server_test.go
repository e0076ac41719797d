package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/landscape"
	"github.com/talgya/forest-bda/internal/persistence"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// An earlier run into the same database.
	if err := db.BeginRun("run-0"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := db.SaveEvent("run-0", &epidemic.Outcome{Time: 10, AgentName: "budworm", SitesDamaged: 99}); err != nil {
		t.Fatalf("save event: %v", err)
	}

	if err := db.BeginRun("run-1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, o := range []*epidemic.Outcome{
		{Time: 10, AgentName: "budworm", ROS: 2, SitesDamaged: 5, CohortsKilled: 9},
		{Time: 20, AgentName: "barkbeetle", ROS: 1, SitesDamaged: 1, CohortsKilled: 1},
		{Time: 30, AgentName: "budworm", ROS: 3, SitesDamaged: 7, CohortsKilled: 11},
	} {
		if err := db.SaveEvent("run-1", o); err != nil {
			t.Fatalf("save event: %v", err)
		}
	}
	if err := db.SaveMeta("seed", "42"); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	g := landscape.NewGrid(1, 2, 100)
	g.Cells[1].ConiferKills[30] = 2
	g.Cells[1].AgentName = "budworm"
	if err := db.SaveSiteState(g); err != nil {
		t.Fatalf("save sites: %v", err)
	}
	return &Server{DB: db}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestEvents(t *testing.T) {
	h := testServer(t).Router()
	rec := get(t, h, "/api/v1/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var events []eventView
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 3 || events[0].Time != 10 || events[2].CohortsKilled != 11 {
		t.Fatalf("events: %+v", events)
	}
	for _, e := range events {
		if e.RunID != "run-1" {
			t.Fatalf("event from another run: %+v", e)
		}
	}
}

func TestEventsOfEarlierRun(t *testing.T) {
	h := testServer(t).Router()
	var events []eventView
	if err := json.Unmarshal(get(t, h, "/api/v1/events?run=run-0").Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].SitesDamaged != 99 {
		t.Fatalf("run-0 events: %+v", events)
	}
}

func TestEventsByAgent(t *testing.T) {
	h := testServer(t).Router()
	rec := get(t, h, "/api/v1/events/budworm?limit=1")
	var events []eventView
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].AgentName != "budworm" || events[0].RunID != "run-1" {
		t.Fatalf("events: %+v", events)
	}

	if rec := get(t, h, "/api/v1/events?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: got %d want 400", rec.Code)
	}
}

func TestMetaAndSites(t *testing.T) {
	h := testServer(t).Router()
	var meta map[string]string
	if err := json.Unmarshal(get(t, h, "/api/v1/meta").Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta["seed"] != "42" || meta["run_id"] != "run-1" {
		t.Fatalf("meta: %v", meta)
	}

	rec := get(t, h, "/api/v1/sites/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("site status %d", rec.Code)
	}
	var site struct {
		AgentName    string         `json:"agent_name"`
		ConiferKills map[string]int `json:"conifer_kills"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &site); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if site.AgentName != "budworm" || site.ConiferKills["30"] != 2 {
		t.Fatalf("site: %+v", site)
	}

	if rec := get(t, h, "/api/v1/sites/99"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing site: got %d want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := testServer(t).Router()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("missing allow-origin header")
	}
}

func TestRateLimit(t *testing.T) {
	s := testServer(t)
	s.Limiter = NewRateLimiter(2, time.Minute)
	h := s.Router()
	for i := 0; i < 2; i++ {
		if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	rec := get(t, h, "/health")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	if !rl.Allow("1.2.3.4") || rl.Allow("1.2.3.4") {
		t.Fatalf("budget of one not enforced")
	}
	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatalf("window did not reset")
	}
}
