package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"true-north/internal/admin"
	"true-north/internal/bot"
	"true-north/internal/config"
	"true-north/internal/logging"
	"true-north/internal/metrics"
	"true-north/internal/repository"
	"true-north/internal/service"
	"true-north/internal/theme"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Logger

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Init("true-north", cfg.LogLevel)
	metrics.Register()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	defer sqlDB.Close()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	userChallengeRepo := repository.NewUserChallengeRepository(db)
	kvRepo := repository.NewKVRepository(db)

	mode, err := theme.ParseMode(cfg.ThemeMode)
	if err != nil {
		log.Fatalf("theme: %v", err)
	}
	settings := theme.NewSettings(mode)

	authSvc := service.NewAuthService(userRepo, sessionRepo, cfg.SessionTTL)
	catalogSvc := service.NewCatalogService(challengeRepo)
	dailySvc := service.NewDailyService(catalogSvc, kvRepo, service.WithLocation(cfg.Location))
	trackerSvc := service.NewTrackerService(authSvc, challengeRepo, userChallengeRepo)
	reportSvc := service.NewReportService(dailySvc, authSvc, trackerSvc, settings)

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Auth:    authSvc,
		Catalog: catalogSvc,
		Daily:   dailySvc,
		Tracker: trackerSvc,
		Report:  reportSvc,
	}, settings)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(cfg.Location)
	if _, err := scheduler.ScheduleDaily(cfg.DailyChallengeTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyChallenges(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("daily push")
		}
	}); err != nil {
		log.Fatalf("schedule daily push: %v", err)
	}
	if _, err := scheduler.ScheduleInterval(cfg.SessionCleanupInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := authSvc.PurgeExpired(jobCtx)
		if err != nil {
			log.WithError(err).Error("purge sessions")
			return
		}
		if removed > 0 {
			log.WithField("removed", removed).Info("expired sessions purged")
		}
	}); err != nil {
		log.Fatalf("schedule session cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.AdminAddr != "" {
		srv := admin.NewServer(cfg.AdminAddr, cfg.AdminToken, sqlDB, catalogSvc, admin.WithTrustedProxies(cfg.AdminTrustedProxies...))
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.WithError(err).Error("admin server")
			}
		}()
	}

	log.Info("True North bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Info("Shutdown complete.")
}
