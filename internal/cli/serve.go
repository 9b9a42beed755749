package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flamedeck/flamedeck/internal/collector"
	"github.com/flamedeck/flamedeck/internal/snapshot"
	"github.com/flamedeck/flamedeck/internal/source"
	"github.com/flamedeck/flamedeck/internal/webui"
)

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command starts the collector loop and the web UI query API.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the collector and the web UI query API",
		Description: `Polls an event source on a fixed interval, builds an indexed snapshot
per batch, and serves it over HTTP. Renderers query /api/query with
their viewport and listen on /ws for new publish generations.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML config file (overrides project/global config)",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Event source: 'demo' or 'otlp-file'",
			},
			&cli.StringFlag{
				Name:  "otlp-dir",
				Usage: "Directory of OTLP/JSON trace files to tail (otlp-file source)",
			},
			&cli.IntFlag{
				Name:  "poll-interval-ms",
				Usage: "Collector polling interval in milliseconds",
			},
			&cli.IntFlag{
				Name:  "demo-seed",
				Usage: "Seed for the synthetic demo workload",
			},
			&cli.StringFlag{
				Name:  "webui-host",
				Usage: "Web UI bind address",
			},
			&cli.IntFlag{
				Name:  "webui-port",
				Usage: "Web UI port",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
		},
		Action: runServe,
	}
}

// runServe is the action handler for the serve command.
// It wires together slot, source, collector, and web UI.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	// Explicit flags beat every config layer.
	cfg = MergeConfigs(cfg, &Config{
		Source:         cmd.String("source"),
		OTLPDir:        cmd.String("otlp-dir"),
		PollIntervalMs: cmd.Int("poll-interval-ms"),
		DemoSeed:       int64(cmd.Int("demo-seed")),
		WebUIHost:      cmd.String("webui-host"),
		WebUIPort:      cmd.Int("webui-port"),
		Verbose:        cmd.Bool("verbose"),
	})

	if cfg.Verbose {
		log.Println("🔧 Configuration:")
		log.Printf("  Source: %s\n", cfg.Source)
		if cfg.Source == "otlp-file" {
			log.Printf("  OTLP dir: %s\n", cfg.OTLPDir)
		}
		log.Printf("  Poll interval: %dms\n", cfg.PollIntervalMs)
		log.Printf("  Web UI bind: %s:%d\n", cfg.WebUIHost, cfg.WebUIPort)
		log.Println()
	}

	slot := snapshot.NewSlot()

	src, cleanup, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	coll := collector.New(src, slot, interval)
	coll.SetVerbose(cfg.Verbose)
	if err := coll.Start(); err != nil {
		return fmt.Errorf("failed to start collector: %w", err)
	}
	defer coll.Stop()

	if cfg.Verbose {
		log.Printf("✅ Collector polling %s source every %v\n", cfg.Source, interval)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(cliCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		if cfg.Verbose {
			log.Printf("📡 Received signal %v, shutting down...\n", sig)
		}
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.WebUIHost, cfg.WebUIPort)
	log.Printf("🌐 Web UI listening on http://%s\n", addr)

	if err := webui.New(slot).ListenAndServe(ctx, addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web UI server error: %w", err)
	}
	return nil
}

// buildSource constructs the configured event source. The returned
// cleanup func releases any resources the source holds (may be nil).
func buildSource(cfg *Config) (collector.EventSource, func(), error) {
	switch cfg.Source {
	case "demo":
		return source.NewDemo(cfg.DemoSeed), nil, nil
	case "otlp-file":
		if cfg.OTLPDir == "" {
			return nil, nil, fmt.Errorf("otlp-file source requires --otlp-dir")
		}
		s, err := source.NewOTLPFile(source.OTLPFileConfig{Dir: cfg.OTLPDir, Verbose: cfg.Verbose})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP file source: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (expected 'demo' or 'otlp-file')", cfg.Source)
	}
}
