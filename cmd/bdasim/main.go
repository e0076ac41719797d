// Command bdasim runs biological disturbance agent epidemics over a
// generated forest landscape and writes the event log, maps, and a summary
// chart.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/forest-bda/internal/agent"
	"github.com/talgya/forest-bda/internal/api"
	"github.com/talgya/forest-bda/internal/config"
	"github.com/talgya/forest-bda/internal/engine"
	"github.com/talgya/forest-bda/internal/entropy"
	"github.com/talgya/forest-bda/internal/epidemic"
	"github.com/talgya/forest-bda/internal/landscape"
	"github.com/talgya/forest-bda/internal/maps"
	"github.com/talgya/forest-bda/internal/persistence"
	"github.com/talgya/forest-bda/internal/report"
)

func main() {
	configPath := flag.String("config", "", "scenario YAML (empty = built-in defaults)")
	seed := flag.Int64("seed", 0, "override the scenario seed")
	outDir := flag.String("out", "", "override the output directory")
	serveAddr := flag.String("serve", "", "serve the event log over HTTP at this address after the run")
	logLevel := flag.String("log-level", envOr("BDA_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("BDA: biological disturbance agent simulation")

	// ── Scenario ──────────────────────────────────────────────────────
	sc, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load scenario", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		sc.Seed = *seed
	}
	if *outDir != "" {
		sc.Outputs.Dir = *outDir
	}

	// ── Landscape ─────────────────────────────────────────────────────
	rng := entropy.New(sc.Seed)
	gen := sc.GenConfig()
	gen.Seed = rng.Seed()
	grid := landscape.Generate(gen)
	slog.Info("landscape generated", "grid", grid.String(), "seed", rng.Seed(), "subregions", gen.Subregions)

	agents, err := sc.BuildAgents()
	if err != nil {
		slog.Error("failed to build agents", "error", err)
		os.Exit(1)
	}

	sim, err := engine.New(grid, agents, rng, engine.Options{
		StartYear: sc.StartTime,
		Timestep:  sc.Timestep,
		Selected:  sc.SelectedManagementAreas,
	})
	if err != nil {
		slog.Error("failed to set up simulation", "error", err)
		os.Exit(1)
	}

	// ── Outputs ───────────────────────────────────────────────────────
	if err := os.MkdirAll(sc.Outputs.Dir, 0o755); err != nil {
		slog.Error("failed to create output dir", "dir", sc.Outputs.Dir, "error", err)
		os.Exit(1)
	}
	dbPath := filepath.Join(sc.Outputs.Dir, sc.Outputs.LogDB)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	// fatal logs, closes the event log and exits 1.
	fatal := func(msg string, args ...any) {
		slog.Error(msg, args...)
		db.Close()
		os.Exit(1)
	}

	runID := uuid.NewString()
	if err := db.BeginRun(runID); err != nil {
		fatal("failed to begin run", "run_id", runID, "error", err)
	}
	meta := map[string]string{
		"seed":      strconv.FormatInt(rng.Seed(), 10),
		"timestep":  strconv.Itoa(sc.Timestep),
		"start":     strconv.Itoa(sc.StartTime),
		"end":       strconv.Itoa(sc.EndTime),
		"started":   time.Now().UTC().Format(time.RFC3339),
		"landscape": grid.String(),
	}
	if err := saveMeta(db, meta); err != nil {
		fatal("failed to save metadata", "error", err)
	}
	slog.Info("event log opened", "path", dbPath, "run_id", runID)

	writer := &maps.Writer{
		Dir:           sc.Outputs.Dir,
		Severity:      sc.Outputs.MapNames,
		SRD:           sc.Outputs.SRDMapNames,
		NRD:           sc.Outputs.NRDMapNames,
		Vulnerability: sc.Outputs.VulnMapNames,
	}

	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name
	}
	history := report.NewHistory(names)

	sim.OnEpidemic = func(a *agent.Agent, o *epidemic.Outcome) error {
		if err := db.SaveEvent(runID, o); err != nil {
			return err
		}
		if _, err := writer.WriteEpidemic(grid, a.Name, o.Time); err != nil {
			return err
		}
		return history.Record(o)
	}

	// ── Run ───────────────────────────────────────────────────────────
	eng := engine.NewEngine(sc.StartTime, sc.EndTime, sc.Timestep)
	eng.OnStep = func(year int) error {
		history.AddYear(year)
		return sim.Step(year)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("running", "timesteps", engine.Steps(sc.StartTime, sc.EndTime, sc.Timestep), "agents", len(agents))
	if err := eng.Run(ctx); err != nil {
		fatal("run halted", "year", eng.Year, "error", err)
	}

	// ── Summary ───────────────────────────────────────────────────────
	if err := db.SaveSiteState(grid); err != nil {
		slog.Error("failed to save site state", "error", err)
	}
	summary := map[string]string{"last_year": strconv.Itoa(eng.Year)}
	for name, year := range sim.TimeOfNext {
		summary["time_of_next."+name] = strconv.Itoa(year)
	}
	if err := saveMeta(db, summary); err != nil {
		slog.Error("failed to save run summary", "error", err)
	}

	history.LogSummary()
	slog.Info("run complete",
		"epidemics", sim.Stats.Epidemics,
		"sites_damaged", sim.Stats.SitesDamaged,
		"cohorts_killed", sim.Stats.CohortsKilled,
		"biomass_killed", sim.Stats.BiomassKilled,
	)

	if sc.Outputs.Chart != "" && len(history.Years) > 0 {
		chartPath := filepath.Join(sc.Outputs.Dir, sc.Outputs.Chart)
		if err := history.WritePNG(chartPath); err != nil {
			slog.Error("failed to write chart", "error", err)
		} else {
			slog.Info("chart written", "path", chartPath)
		}
	}

	if *serveAddr == "" {
		db.Close()
		return
	}

	// ── Serve ─────────────────────────────────────────────────────────
	srv := &api.Server{
		DB:      db,
		Addr:    *serveAddr,
		Limiter: api.NewRateLimiter(600, time.Minute),
	}
	srv.Start()
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	db.Close()
}

// saveMeta writes every pair in key order and stops at the first failure.
func saveMeta(db *persistence.DB, meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := db.SaveMeta(k, meta[k]); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
