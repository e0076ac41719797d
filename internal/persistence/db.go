// Package persistence provides SQLite storage for the epidemic event log,
// run metadata, and the site variables published to other extensions.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/landscape"
)

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		time INTEGER NOT NULL,
		ros INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		cohorts_killed INTEGER NOT NULL,
		damaged_sites INTEGER NOT NULL,
		mean_severity REAL NOT NULL,
		total_biomass_killed INTEGER NOT NULL,
		selected_areas_json TEXT NOT NULL,
		cohorts_killed_in_ma_json TEXT NOT NULL,
		damaged_sites_in_ma_json TEXT NOT NULL,
		biomass_killed_in_ma_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS site_state (
		cell_index INTEGER PRIMARY KEY,
		row INTEGER NOT NULL,
		col INTEGER NOT NULL,
		disturbed INTEGER NOT NULL,
		time_of_last_event INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		time_of_next INTEGER NOT NULL,
		conifer_kills_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
	CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_name);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// EventRow is one logged epidemic.
type EventRow struct {
	ID                 int64   `db:"id" json:"id"`
	RunID              string  `db:"run_id" json:"run_id"`
	Time               int     `db:"time" json:"time"`
	ROS                int     `db:"ros" json:"ros"`
	AgentName          string  `db:"agent_name" json:"agent_name"`
	CohortsKilled      int     `db:"cohorts_killed" json:"cohorts_killed"`
	DamagedSites       int     `db:"damaged_sites" json:"damaged_sites"`
	MeanSeverity       float64 `db:"mean_severity" json:"mean_severity"`
	TotalBiomassKilled int64   `db:"total_biomass_killed" json:"total_biomass_killed"`

	SelectedAreasJSON    string `db:"selected_areas_json" json:"-"`
	CohortsKilledInMA    string `db:"cohorts_killed_in_ma_json" json:"-"`
	DamagedSitesInMA     string `db:"damaged_sites_in_ma_json" json:"-"`
	BiomassKilledInMAStr string `db:"biomass_killed_in_ma_json" json:"-"`
}

// Outcome decodes the row back into an epidemic outcome.
func (r EventRow) Outcome() (*epidemic.Outcome, error) {
	o := &epidemic.Outcome{
		Time:          r.Time,
		AgentName:     r.AgentName,
		ROS:           r.ROS,
		SitesDamaged:  r.DamagedSites,
		CohortsKilled: r.CohortsKilled,
		BiomassKilled: r.TotalBiomassKilled,
		MeanSeverity:  r.MeanSeverity,
	}
	for _, f := range []struct {
		src string
		dst any
	}{
		{r.SelectedAreasJSON, &o.SelectedAreas},
		{r.CohortsKilledInMA, &o.CohortsKilledInArea},
		{r.DamagedSitesInMA, &o.SitesDamagedInArea},
		{r.BiomassKilledInMAStr, &o.BiomassKilledInArea},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", r.ID, err)
		}
	}
	return o, nil
}

// SaveEvent appends one epidemic to the event log.
func (db *DB) SaveEvent(runID string, o *epidemic.Outcome) error {
	areas, _ := json.Marshal(nonNil(o.SelectedAreas))
	cohorts, _ := json.Marshal(nonNil(o.CohortsKilledInArea))
	sites, _ := json.Marshal(nonNil(o.SitesDamagedInArea))
	biomass, _ := json.Marshal(nonNil(o.BiomassKilledInArea))

	_, err := db.conn.Exec(`INSERT INTO events
		(run_id, time, ros, agent_name, cohorts_killed, damaged_sites, mean_severity,
		 total_biomass_killed, selected_areas_json, cohorts_killed_in_ma_json,
		 damaged_sites_in_ma_json, biomass_killed_in_ma_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Time, o.ROS, o.AgentName, o.CohortsKilled, o.SitesDamaged,
		o.MeanSeverity, o.BiomassKilled,
		string(areas), string(cohorts), string(sites), string(biomass),
	)
	if err != nil {
		return fmt.Errorf("insert event %s@%d: %w", o.AgentName, o.Time, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Events returns the epidemics logged by one run in time order, optionally
// filtered by agent. An empty runID spans every run; a limit of zero
// returns every row.
func (db *DB) Events(runID, agentName string, limit int) ([]EventRow, error) {
	query := "SELECT * FROM events"
	var where []string
	var args []any
	if runID != "" {
		where = append(where, "run_id = ?")
		args = append(args, runID)
	}
	if agentName != "" {
		where = append(where, "agent_name = ?")
		args = append(args, agentName)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []EventRow
	err := db.conn.Select(&rows, query, args...)
	return rows, err
}

// BeginRun replaces the run metadata with a fresh set holding only the run
// id. Events of earlier runs stay in the log under their own ids.
func (db *DB) BeginRun(runID string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_meta"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO run_meta (key, value) VALUES ('run_id', ?)", runID); err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return tx.Commit()
}

// CurrentRun returns the id of the most recently begun run.
func (db *DB) CurrentRun() (string, error) {
	return db.GetMeta("run_id")
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// AllMeta returns every metadata pair.
func (db *DB) AllMeta() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM run_meta ORDER BY key"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SiteRow is the published state of one active cell.
type SiteRow struct {
	CellIndex        int    `db:"cell_index"`
	Row              int    `db:"row"`
	Col              int    `db:"col"`
	Disturbed        bool   `db:"disturbed"`
	TimeOfLastEvent  int    `db:"time_of_last_event"`
	AgentName        string `db:"agent_name"`
	TimeOfNext       int    `db:"time_of_next"`
	ConiferKillsJSON string `db:"conifer_kills_json"`
}

// SaveSiteState writes the published variables of every active cell
// (full replace).
func (db *DB) SaveSiteState(g *landscape.Grid) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM site_state"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO site_state
		(cell_index, row, col, disturbed, time_of_last_event, agent_name, time_of_next, conifer_kills_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range g.Active() {
		kills, _ := json.Marshal(c.ConiferKills)
		disturbed := 0
		if c.Disturbed {
			disturbed = 1
		}
		_, err := stmt.Exec(
			c.Index, c.Loc.Row, c.Loc.Col, disturbed, c.TimeOfLastEvent,
			c.AgentName, c.TimeOfNext, string(kills),
		)
		if err != nil {
			return fmt.Errorf("insert site %d: %w", c.Index, err)
		}
	}

	slog.Debug("site state saved", "sites", len(g.Active()))
	return tx.Commit()
}

// SiteState returns the saved state of one cell.
func (db *DB) SiteState(cellIndex int) (SiteRow, error) {
	var row SiteRow
	err := db.conn.Get(&row, "SELECT * FROM site_state WHERE cell_index = ?", cellIndex)
	return row, err
}
