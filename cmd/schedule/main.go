package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyladiescon/confops/internal/app"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/provider"
	"github.com/pyladiescon/confops/internal/schedule"
	"github.com/spf13/pflag"
)

type options struct {
	out     string
	asJSON  bool
	room    string
	folders string
}

func main() {
	var opts options
	pflag.StringVar(&opts.out, "out", "schedule.csv", `output file, "-" for stdout`)
	pflag.BoolVar(&opts.asJSON, "json", false, "write JSON grouped by day instead of CSV")
	pflag.StringVar(&opts.room, "room", schedule.MainStream, "room whose sessions are streamed")
	pflag.StringVar(&opts.folders, "speaker-folders", "", "CSV of speaker code, recording folder id and Q&A mode")
	pflag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := run(cfg, logger, opts); err != nil {
		logger.Error("schedule failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *infra.Config, logger *slog.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PretalxToken == "" {
		return fmt.Errorf("PRETALX_API_TOKEN is required")
	}

	var folders map[string]schedule.Folder
	if opts.folders != "" {
		f, err := schedule.LoadFolders(opts.folders)
		if err != nil {
			return err
		}
		folders = f
	}

	breaker := guard.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)
	pretalx := provider.NewPretalxClient(cfg.PretalxEventURL(), cfg.PretalxToken, cfg.HTTPTimeout, breaker, logger)

	sched, err := schedule.NewGenerator(pretalx, opts.room, folders, logger).Build(ctx)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer f.Close()
		w = f
	}

	if opts.asJSON {
		err = sched.WriteJSON(w)
	} else {
		err = sched.WriteCSV(w)
	}
	if err != nil {
		return err
	}

	logger.Info("schedule written", "out", opts.out, "room", sched.Room,
		"sessions", len(sched.Sessions), "unscheduled", len(sched.Unscheduled))
	return nil
}
