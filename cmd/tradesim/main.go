// Command tradesim runs the discrete-event trade simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/talgya/tradesim/internal/api"
	"github.com/talgya/tradesim/internal/config"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/metrics"
	"github.com/talgya/tradesim/internal/persistence"
	"github.com/talgya/tradesim/internal/scenario"
)

func main() {
	app := &cli.App{
		Name:  "tradesim",
		Usage: "discrete-event simulation of buyers, sellers and carriers trading goods",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"TRADESIM_LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{runCmd, reportCmd, configCmd},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("tradesim failed", "error", err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run a scenario",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "scenario TOML file (built-in scenario when empty)",
			EnvVars: []string{"TRADESIM_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "SQLite file for notices and snapshots (none when empty)",
			EnvVars: []string{"TRADESIM_DB"},
		},
		&cli.Float64Flag{Name: "days", Usage: "override the simulated horizon in days"},
		&cli.Int64Flag{Name: "seed", Usage: "override the random seed"},
		&cli.IntFlag{
			Name:    "api-port",
			Usage:   "serve the HTTP API on this port (disabled when 0)",
			EnvVars: []string{"TRADESIM_API_PORT"},
		},
		&cli.Float64Flag{Name: "speed", Value: 1, Usage: "pacing multiplier, 0 pauses"},
		&cli.DurationFlag{Name: "day-interval", Usage: "wall time per simulated day at speed 1 (0 runs flat out)"},
		&cli.IntFlag{Name: "checkpoint-every", Value: 7, Usage: "days between snapshots"},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx.String("config"))
		if err != nil {
			return err
		}
		if cctx.IsSet("days") {
			cfg.Days = cctx.Float64("days")
		}
		if cctx.IsSet("seed") {
			cfg.Seed = cctx.Int64("seed")
		}

		sc, err := scenario.Build(cfg)
		if err != nil {
			return err
		}
		slog.Info("scenario built", "actors", len(sc.Model.Actors()), "products", len(sc.Catalog.Names()), "seed", cfg.Seed, "days", cfg.Days)

		collector := metrics.New()
		sc.Model.Subscribe(collector.Observe)

		// ── Database ──────────────────────────────────────────────────────
		var db *persistence.DB
		var journal *persistence.Journal
		if path := cctx.String("db"); path != "" {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return err
				}
			}
			db, err = persistence.Open(path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			doc, err := cfg.Encode()
			if err != nil {
				return err
			}
			runID, err := db.StartRun(cfg.Start, cfg.Seed, doc)
			if err != nil {
				return err
			}
			journal = persistence.NewJournal(db, runID)
			sc.Model.Subscribe(journal.Listen)
			slog.Info("database opened", "path", path, "run", runID)
		}

		if err := sc.Model.Start(); err != nil {
			return err
		}

		runner := engine.NewRunner(sc.Model.Scheduler())
		runner.Until = engine.At(cfg.Days)
		runner.Speed = cctx.Float64("speed")
		runner.Interval = cctx.Duration("day-interval")
		every := uint64(max(cctx.Int("checkpoint-every"), 1))
		runner.OnDay = func(day uint64, now engine.Time) {
			collector.Tick(now)
			if journal == nil {
				return
			}
			if day%every == 0 {
				if err := journal.Checkpoint(sc.Model); err != nil {
					slog.Error("checkpoint failed", "day", day, "error", err)
				}
				return
			}
			if err := journal.Flush(); err != nil {
				slog.Error("notice flush failed", "day", day, "error", err)
			}
		}

		// ── HTTP API ──────────────────────────────────────────────────────
		if port := cctx.Int("api-port"); port > 0 {
			adminKey := os.Getenv("TRADESIM_ADMIN_KEY")
			if adminKey == "" {
				slog.Warn("TRADESIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
			}
			srv := &api.Server{
				Scenario: sc,
				Runner:   runner,
				Journal:  journal,
				DB:       db,
				Metrics:  collector,
				Port:     port,
				AdminKey: adminKey,
			}
			srv.Start()
			fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
		}

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		started := time.Now()
		runErr := runner.Run(ctx)
		if runErr != nil && ctx.Err() == nil {
			return runErr
		}

		if journal != nil {
			slog.Info("final save...")
			if err := journal.Checkpoint(sc.Model); err != nil {
				slog.Error("final save failed", "error", err)
			}
		}
		printSummary(sc, time.Since(started))
		return nil
	},
}

var reportCmd = &cli.Command{
	Name:  "report",
	Usage: "summarise the notices of the latest stored run",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Required: true,
			EnvVars:  []string{"TRADESIM_DB"},
		},
	},
	Action: func(cctx *cli.Context) error {
		db, err := persistence.Open(cctx.String("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.LatestRun()
		if err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
		counts, err := db.NoticeCounts(run.ID)
		if err != nil {
			return err
		}
		balances, err := db.LoadBalances(run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s (seed %d, start %s)\n", run.ID, run.Seed, run.StartedAt)
		if at, err := db.GetMeta(run.ID, "snapshot_at"); err == nil {
			var t int64
			if _, err := fmt.Sscan(at, &t); err == nil {
				fmt.Printf("Last snapshot: %s\n", engine.Time(t))
			}
		}
		fmt.Println("\nNotices:")
		for _, c := range counts {
			fmt.Printf("  %-10s %-18s %s\n", c.Category, c.Kind, humanize.Comma(int64(c.Count)))
		}
		fmt.Println("\nBalances:")
		for _, id := range sortedKeys(balances) {
			fmt.Printf("  %-10s $%s\n", id, humanize.CommafWithDigits(balances[id], 2))
		}
		return nil
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "print the built-in scenario as TOML",
	Action: func(cctx *cli.Context) error {
		doc, err := config.Default().Encode()
		if err != nil {
			return err
		}
		fmt.Print(doc)
		return nil
	},
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("no config given, using built-in scenario")
		return config.Default(), nil
	}
	return config.Load(path)
}

func printSummary(sc *scenario.Scenario, wall time.Duration) {
	sched := sc.Model.Scheduler()
	fmt.Printf("\nSimulated %s (%s) in %s, %s events.\n",
		sc.Model.Now(), sched.Date(sc.Model.Now()).Format("2006-01-02"),
		wall.Round(time.Millisecond), humanize.Comma(int64(sched.Executed())))

	for _, a := range sc.Model.Actors() {
		line := fmt.Sprintf("  %-10s", a.ID())
		if acc := a.Account(); acc != nil {
			line += fmt.Sprintf(" %14s", acc.Balance())
		}
		for _, name := range a.Ledger().Products() {
			st, _ := a.Ledger().Get(name)
			line += fmt.Sprintf("  %s=%s", name, humanize.Ftoa(st.Actual))
		}
		fmt.Println(line)
	}
	for _, id := range sortedKeys(sc.Consumers) {
		c := sc.Consumers[id]
		for _, name := range sc.Catalog.Names() {
			if sold, lost := c.Sold(name), c.Lost(name); sold > 0 || lost > 0 {
				fmt.Printf("  %s sold %s %s, %s unmet\n", id, humanize.Ftoa(sold), name, humanize.Ftoa(lost))
			}
		}
	}
	for _, id := range sortedKeys(sc.Carriers) {
		fmt.Printf("  %s carried %d shipments\n", id, sc.Carriers[id].Executed())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
