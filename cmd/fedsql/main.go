package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fedsql/fedsql/internal/catalog"
	"github.com/fedsql/fedsql/internal/config"
	"github.com/fedsql/fedsql/internal/engine"
	"github.com/fedsql/fedsql/internal/log"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		command     = flag.String("c", "", "Run a single query and exit")
		explainOnly = flag.Bool("explain", false, "Plan the query without executing it (with -c)")
		showVersion = flag.Bool("version", false, "Show version information")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("fedsql v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	log.Configure(cfg.Logging)
	logger := log.Default()

	logger.Info("Starting fedsql",
		"version", version,
		"commit", commit,
		"config", *configFile,
		"sources", len(cfg.Sources))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry, err := config.BuildRegistry(ctx, cfg.Sources)
	if err != nil {
		logger.Error("Failed to open sources", log.Err(err))
		os.Exit(1)
	}
	defer registry.Close()

	cat := catalog.NewMemoryCatalog()
	for _, src := range cfg.Sources {
		if err := cat.RegisterSource(&catalog.SourceMeta{Name: src.Name, Kind: strings.ToLower(src.Kind)}); err != nil {
			logger.Error("Failed to register source", log.Source(src.Name), log.Err(err))
			os.Exit(1)
		}
	}

	eng, err := engine.New(cfg.ToEngineConfig(), registry, cat, engine.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create engine", log.Err(err))
		os.Exit(1)
	}
	defer eng.Close()

	if *command != "" {
		if err := runOnce(ctx, eng, *command, *explainOnly); err != nil {
			fmt.Fprintln(os.Stderr, renderError(err))
			os.Exit(1)
		}
		return
	}

	if err := runREPL(ctx, eng); err != nil {
		logger.Error("Shell failed", log.Err(err))
		os.Exit(1)
	}
}

// runOnce executes one query from the command line and prints the
// result table, or the plan with -explain.
func runOnce(ctx context.Context, eng *engine.Engine, sql string, explainOnly bool) error {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	if explainOnly {
		plan, err := eng.Explain(ctx, sql)
		if err != nil {
			return err
		}
		fmt.Print(renderPlan(plan))
		return nil
	}

	result, err := eng.Execute(ctx, sql, engine.Options{UseCache: true})
	if err != nil {
		return err
	}
	fmt.Print(renderResult(result))
	return nil
}
