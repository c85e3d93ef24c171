package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/crease/log"
	"github.com/justapithecus/crease/metrics"
	"github.com/justapithecus/crease/nhl"
	"github.com/justapithecus/crease/runtime"
	"github.com/justapithecus/crease/types"
	"github.com/justapithecus/crease/warehouse"
)

// RunCommand returns the run command.
// This is the only command that writes to the store or the warehouse.
func RunCommand() *cli.Command {
	flags := pipelineFlags()
	flags = append(flags,
		// Run identity
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (default: random UUID)",
		},
		&cli.IntFlag{
			Name:  "attempt",
			Usage: "Attempt number (starts at 1)",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "parent-run-id",
			Usage: "Parent run ID (required for retries)",
		},
		// Source
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Stats API base URL",
		},
		// Warehouse
		&cli.StringFlag{
			Name:  "database-driver",
			Usage: "Warehouse driver: sqlite3 or pgx",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Warehouse connection string",
			EnvVars: []string{"CREASE_DATABASE_URL"},
		},
		&cli.BoolFlag{
			Name:  "create-schema",
			Usage: "Create missing warehouse tables before loading",
		},
		&cli.BoolFlag{
			Name:  "skip-load",
			Usage: "Run the task graph only, without loading the warehouse",
		},
		// Output
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "Write Prometheus metrics to this file after the run",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
	)

	return &cli.Command{
		Name:   "run",
		Usage:  "Extract a season, clean it and load the warehouse",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	s, err := loadSettings(c)
	if err != nil {
		return configExit(err)
	}

	runMeta := &types.RunMeta{
		RunID:   c.String("run-id"),
		Season:  s.season,
		Attempt: c.Int("attempt"),
	}
	if runMeta.RunID == "" {
		runMeta.RunID = uuid.NewString()
	}
	if parent := c.String("parent-run-id"); parent != "" {
		runMeta.ParentRunID = &parent
	}
	if err := runMeta.Validate(); err != nil {
		return configExit(fmt.Errorf("invalid run metadata: %w", err))
	}

	logger := log.NewLogger(runMeta)
	defer func() { _ = logger.Sync() }()

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, canceling run", map[string]any{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	s.source.Logger = logger
	client, err := nhl.NewClient(s.source)
	if err != nil {
		return configExit(err)
	}
	targets, specs, err := nhl.NewPipeline(client, s.season).Targets(s.tables...)
	if err != nil {
		return configExit(err)
	}

	store, err := openStore(ctx, s.store)
	if err != nil {
		return configExit(fmt.Errorf("open store: %w", err))
	}

	skipLoad := c.Bool("skip-load")
	cfg := &runtime.RunConfig{
		RunMeta:         runMeta,
		Targets:         targets,
		Specs:           specs,
		Store:           store,
		CreateSchema:    s.createSchema,
		SkipLoad:        skipLoad,
		MetricsTextfile: s.metricsTextfile,
		Logger:          logger,
	}

	warehouseLabel := "none"
	if !skipLoad {
		if err := s.warehouse.Validate(); err != nil {
			return configExit(err)
		}
		db, dialect, err := warehouse.Open(ctx, s.warehouse)
		if err != nil {
			return cli.Exit(fmt.Sprintf("warehouse unavailable: %v", err), runtime.ExitCodeLoadFailure)
		}
		defer func() { _ = db.Close() }()
		cfg.DB = db
		cfg.Dialect = dialect
		warehouseLabel = s.warehouse.Driver
	}

	a, err := buildAdapter(s.adapter)
	if err != nil {
		return configExit(err)
	}
	if a != nil {
		defer func() { _ = a.Close() }()
		cfg.Adapter = a
	}

	cfg.Collector = metrics.NewCollector(s.season, s.store.Backend, warehouseLabel, runMeta.RunID)

	orchestrator, err := runtime.NewRunOrchestrator(cfg)
	if err != nil {
		return configExit(err)
	}

	result := orchestrator.Execute(ctx)
	code := runtime.ExitCode(result.Outcome.Status)

	if path := c.String("report"); path != "" {
		report := runtime.BuildRunReport(result, cfg.Collector.Snapshot(), code)
		if err := runtime.WriteRunReport(report, path); err != nil {
			logger.Warn("failed to write run report", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	if !c.Bool("quiet") {
		printRunResult(result)
	}

	return cli.Exit("", code)
}

// configExit maps a setup error to the config error exit code.
func configExit(err error) error {
	return cli.Exit(fmt.Sprintf("configuration error: %v", err), runtime.ExitCodeConfigError)
}

func printRunResult(result *runtime.RunResult) {
	fmt.Printf("\nrun_id=%s, season=%s, attempt=%d, outcome=%s, duration=%s\n",
		result.RunMeta.RunID,
		result.RunMeta.Season,
		result.RunMeta.Attempt,
		result.Outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	fmt.Printf("\n=== Run Result ===\n")
	fmt.Printf("Run ID:       %s\n", result.RunMeta.RunID)
	if result.RunMeta.ParentRunID != nil {
		fmt.Printf("Parent Run:   %s\n", *result.RunMeta.ParentRunID)
	}
	fmt.Printf("Attempt:      %d\n", result.RunMeta.Attempt)
	fmt.Printf("Outcome:      %s\n", result.Outcome.Status)
	fmt.Printf("Message:      %s\n", result.Outcome.Message)
	fmt.Printf("Phase:        %s\n", result.Phase)

	if tasks := result.Tasks; tasks != nil {
		fmt.Printf("\n=== Tasks ===\n")
		fmt.Printf("Executed:       %d\n", len(tasks.Executed))
		fmt.Printf("Skipped:        %d\n", len(tasks.Skipped))
		fmt.Printf("Not Required:   %d\n", len(tasks.NotRequired))
		fmt.Printf("Not Attempted:  %d\n", len(tasks.NotAttempted))
		if tasks.Failed != nil {
			fmt.Printf("Failed:         %s\n", *tasks.Failed)
		}
	}

	if len(result.Loads) > 0 {
		fmt.Printf("\n=== Tables ===\n")
		for _, l := range result.Loads {
			fmt.Printf("  %-14s inserted=%d skipped=%d duplicates=%d\n",
				l.Table, l.Inserted, l.Skipped, l.Duplicates)
		}
		fmt.Printf("Rows Inserted:  %d\n", result.RowsInserted())
	}
}
