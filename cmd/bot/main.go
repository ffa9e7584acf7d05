package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"dailylog-bot/internal/audit"
	"dailylog-bot/internal/auth"
	"dailylog-bot/internal/blob"
	"dailylog-bot/internal/config"
	"dailylog-bot/internal/dispatch"
	"dailylog-bot/internal/pending"
	"dailylog-bot/internal/records"
	"dailylog-bot/internal/scheduler"
	"dailylog-bot/internal/scratch"
	"dailylog-bot/internal/telegram"
	"dailylog-bot/pkg/logger"
)

func main() {
	envFile := pflag.String("env-file", ".env", "path to a .env file")
	pflag.Parse()

	envErr := godotenv.Load(*envFile)

	cfg, err := config.New()
	if err != nil {
		boot := logger.New(os.Stderr, "info", os.Getenv("ENV") == "development")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Env == "development")
	if envErr != nil {
		log.Warn().Err(envErr).Str("path", *envFile).Msg(".env file not loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, _ := cfg.Location()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init remote store")
	}
	sm, err := scratch.New(cfg.ScratchDir, log.With().Str("component", "scratch").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init scratch dir")
	}

	registry, err := auth.NewWithRepo(ctx, auth.NewBlobRepository(blobs, sm, cfg.AllowlistName), cfg.Superusers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load allow-list")
	}
	if len(cfg.Superusers) == 0 {
		log.Warn().Msg("SUPERUSERS is empty, nobody can grant access")
	}

	opts := dispatch.Options{ConfirmToken: cfg.ConfirmToken, Location: loc}
	if cfg.AuditDir != "" {
		rec, err := audit.NewFileRecorder(cfg.AuditDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init audit journal")
		}
		defer rec.Close()
		opts.Audit = rec
	}

	store := records.New(blobs, sm, log.With().Str("component", "records").Logger())
	dispatcher := dispatch.New(store, registry, pending.NewStore(),
		log.With().Str("component", "dispatch").Logger(), opts)

	bot, err := telegram.New(cfg.TelegramBotToken, dispatcher, log.With().Str("component", "telegram").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	sched := scheduler.New(cfg.ReportCron, loc, log.With().Str("component", "scheduler").Logger())
	sched.SetReportFunction(func(ctx context.Context) error {
		notices, err := dispatcher.DailyReport(ctx)
		if err != nil {
			return err
		}
		bot.Deliver(notices)
		return nil
	})
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	if sched.IsRunning() {
		defer sched.Stop()
	} else if len(cfg.Superusers) > 0 {
		log.Warn().Msg("no daily report will be sent, REPORT_CRON is empty")
	}

	webhookPath := ""
	if cfg.WebhookURL != "" {
		webhookPath, err = bot.RegisterWebhook(cfg.WebhookURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to register webhook")
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           bot.Router(webhookPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Bool("webhook", webhookPath != "").Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if webhookPath == "" {
		log.Info().Msg("receiving updates by long polling")
		if err := bot.Start(ctx); err != nil {
			log.Error().Err(err).Msg("polling stopped")
		}
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.StoreBackend == config.BackendLocal {
		return blob.NewDirStore(cfg.LocalStoreDir)
	}
	return blob.NewDriveStore(ctx, cfg.GoogleCredentialsJSON, cfg.GoogleRefreshToken, cfg.DriveFolderID)
}
