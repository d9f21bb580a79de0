package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyladiescon/confops/internal/app"
	"github.com/pyladiescon/confops/internal/auth"
	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/game"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/handler"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
	"github.com/pyladiescon/confops/internal/notify"
	"github.com/pyladiescon/confops/internal/policy"
	"github.com/pyladiescon/confops/internal/provider"
	"github.com/pyladiescon/confops/internal/reconcile"
	"github.com/pyladiescon/confops/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("bot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *infra.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	roles, err := policy.LoadRoleMapping(cfg.RoleMappingPath)
	if err != nil {
		return fmt.Errorf("load role mapping: %w", err)
	}

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	registrations, err := stores.Ledger(ledger.Registrations, cfg.RegistrationLedgerPath)
	if err != nil {
		return err
	}

	metrics := infra.NewMetrics(prometheus.DefaultRegisterer)
	breaker := guard.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)

	// External providers
	pretix := provider.NewPretixClient(cfg.PretixEventURL(), cfg.PretixToken, cfg.HTTPTimeout, breaker, logger)
	discord := provider.NewDiscordClient(cfg.DiscordAPIBaseURL, cfg.DiscordToken, cfg.DiscordGuildID, cfg.HTTPTimeout, breaker, logger)

	// Lookups fall back to single-order fetches until the first refresh completes.
	index := provider.NewTicketIndex(pretix, metrics, logger)

	kafka := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, cfg.KafkaEnabled, logger)
	defer kafka.Close()
	audit := app.AuditSink(cfg, discord, kafka, logger)

	// Services
	engine := reconcile.NewEngine(reconcile.Deps{
		Tickets:   index,
		Roles:     roles,
		Granter:   discord,
		Nicknamer: discord,
		Ledger:    registrations,
		Timeout:   cfg.IntegrationTimeout,
		Metrics:   metrics,
		Logger:    logger,
	})
	limiter := guard.NewRateLimiter(cfg.RegistrationAttempts, cfg.RegistrationWindow)
	registrationSvc := service.NewRegistrationService(engine, limiter, audit, cfg.RegHelpChannelID, logger)

	volunteerRole := domain.RoleID(cfg.VolunteerRoleID)
	if volunteerRole == "" {
		volunteerRole, _ = roles.Role("volunteers")
	}
	oneoffLog := notify.NewChannelLogger("oneoff", logger, discord, cfg.LogChannelID, slog.LevelInfo)
	volunteerSvc := service.NewVolunteerService(discord, volunteerRole, oneoffLog, audit, logger)

	var (
		trivia handler.GamePlayer
		board  *game.Board
	)
	if cfg.GameEnabled {
		chapters, err := game.LoadChapters(cfg.GameChaptersPath)
		if err != nil {
			return fmt.Errorf("load game chapters: %w", err)
		}
		scores := game.NewFileStore(cfg.GameScoresPath, cfg.GameBackupDir)
		players, err := scores.Load()
		if err != nil {
			return fmt.Errorf("load game scores: %w", err)
		}
		logger.Info("trivia game loaded", "chapters", len(chapters), "players", len(players))

		play := game.NewGame(chapters, players, game.Config{QuestionTTL: cfg.GameQuestionTTL}, metrics, logger)
		board = game.NewBoard(play, scores, discord, cfg.GameRankingChannelID, cfg.GameRankingSize, logger)
		trivia = play
	}

	router := app.NewRouter(app.RouterDeps{
		Registration: registrationSvc,
		Volunteers:   volunteerSvc,
		Game:         trivia,
		Verifier:     provider.NewSignatureVerifier(cfg.InteractionsSecret, provider.DefaultSignatureTolerance),
		JWTMgr:       auth.NewJWTManager(cfg.JWTSecret, cfg.JWTOperatorExpiry),
		Health:       stores.HealthChecks(),
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("bot server starting", "addr", addr, "ledger_backend", cfg.LedgerBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return index.Run(gctx, cfg.PretixRefreshInterval)
	})

	if cfg.DonationsEnabled {
		donations := service.NewDonationsService(pretix, discord, service.DonationsConfig{
			ChannelID: cfg.DonationsChannelID,
			DonateURL: cfg.DonationsURL,
			Currency:  cfg.DonationsCurrency,
			Timeout:   2 * cfg.HTTPTimeout,
		}, audit, logger)
		g.Go(func() error {
			return donations.Run(gctx, cfg.DonationsInterval)
		})
	}

	if board != nil {
		g.Go(func() error {
			return board.RunRanking(gctx, cfg.GameRankingInterval)
		})
		g.Go(func() error {
			return board.RunBackups(gctx, cfg.GameBackupInterval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("bot stopped gracefully")
	return nil
}
