package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyladiescon/confops/internal/app"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
	"github.com/pyladiescon/confops/internal/provider"
	"github.com/pyladiescon/confops/internal/service"
	"github.com/spf13/pflag"
)

type options struct {
	dryRun       bool
	recipients   string
	skipOrders   bool
	template     string
	generateOnly bool
	inkscape     string
}

func main() {
	var opts options
	pflag.BoolVar(&opts.dryRun, "dry-run", false, "report what would be sent without sending or recording")
	pflag.StringVar(&opts.recipients, "recipients", "", "CSV of extra recipients (name,email,role) to certify")
	pflag.BoolVar(&opts.skipOrders, "skip-orders", false, "only process --recipients, not ticket holders")
	pflag.StringVar(&opts.template, "generate", "", "SVG template; render missing certificate PDFs before sending")
	pflag.BoolVar(&opts.generateOnly, "generate-only", false, "render certificates and exit without sending")
	pflag.StringVar(&opts.inkscape, "inkscape", "inkscape", "inkscape binary used to convert SVG to PDF")
	pflag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := run(cfg, logger, opts); err != nil {
		logger.Error("certificates failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *infra.Config, logger *slog.Logger, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.generateOnly && opts.template == "" {
		return fmt.Errorf("--generate-only needs --generate <template.svg>")
	}
	if cfg.GmailAccessToken == "" && !opts.dryRun && !opts.generateOnly {
		return fmt.Errorf("GMAIL_ACCESS_TOKEN is required unless --dry-run is set")
	}

	var extra []service.Recipient
	if opts.recipients != "" {
		f, err := os.Open(opts.recipients)
		if err != nil {
			return fmt.Errorf("open recipients: %w", err)
		}
		extra, err = service.ReadRecipients(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	breaker := guard.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)
	pretix := provider.NewPretixClient(cfg.PretixEventURL(), cfg.PretixToken, cfg.HTTPTimeout, breaker, logger)

	if opts.template != "" {
		if err := generate(ctx, cfg, logger, pretix, extra, opts); err != nil {
			return err
		}
		if opts.generateOnly {
			return nil
		}
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	sent, err := stores.Ledger(ledger.Certificates, cfg.CertificateLedgerPath)
	if err != nil {
		return err
	}

	metrics := infra.NewMetrics(prometheus.NewRegistry())
	gmail := provider.NewGmailClient(cfg.GmailBaseURL, cfg.GmailAccessToken, cfg.HTTPTimeout, breaker, logger)

	kafka := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, cfg.KafkaEnabled, logger)
	defer kafka.Close()
	// No chat channel here: certificate results go to the log and the stream.
	audit := app.AuditSink(cfg, nil, kafka, logger)

	svc := service.NewCertificateService(pretix, gmail, guard.NewSendOnce(sent), service.CertificateConfig{
		Dir:             cfg.CertificateDir,
		ItemIDs:         cfg.CertificateItems,
		SenderName:      cfg.SenderName,
		SenderEmail:     cfg.SenderEmail,
		ConferenceName:  cfg.ConferenceName,
		ConferenceDates: cfg.ConferenceDates,
		DryRun:          opts.dryRun,
	}, audit, metrics, logger)

	var total service.Report
	if !opts.skipOrders {
		r, err := svc.IssueAll(ctx)
		if err != nil {
			return fmt.Errorf("issue attendee certificates: %w", err)
		}
		total = r
	}
	if len(extra) > 0 {
		r, err := svc.IssueExtra(ctx, extra)
		if err != nil {
			return fmt.Errorf("issue contributor certificates: %w", err)
		}
		total.Add(r)
	}

	fmt.Printf("sent=%d already_sent=%d skipped=%d failed=%d dry_run=%t\n",
		total.Sent, total.AlreadySent, total.Skipped, total.Failed, opts.dryRun)
	if total.Failed > 0 {
		return fmt.Errorf("%d certificates failed", total.Failed)
	}
	return nil
}

// generate renders the certificate PDFs that IssueAll and IssueExtra attach.
func generate(ctx context.Context, cfg *infra.Config, logger *slog.Logger, orders service.OrderIterator, extra []service.Recipient, opts options) error {
	tmpl, err := os.ReadFile(opts.template)
	if err != nil {
		return fmt.Errorf("read certificate template: %w", err)
	}
	gen, err := service.NewCertificateGenerator(orders, service.InkscapeConverter{Binary: opts.inkscape}, tmpl, cfg.CertificateDir, cfg.CertificateItems, logger)
	if err != nil {
		return err
	}

	var total service.GenerateReport
	if !opts.skipOrders {
		r, err := gen.GenerateAll(ctx)
		if err != nil {
			return fmt.Errorf("generate attendee certificates: %w", err)
		}
		total = r
	}
	if len(extra) > 0 {
		r, err := gen.GenerateExtra(ctx, extra)
		if err != nil {
			return fmt.Errorf("generate contributor certificates: %w", err)
		}
		total.Add(r)
	}

	fmt.Printf("generated=%d existing=%d failed=%d duplicates=%d\n",
		total.Generated, total.Existing, total.Failed, total.Duplicates)
	if total.Failed > 0 {
		return fmt.Errorf("%d certificates could not be generated", total.Failed)
	}
	return nil
}
