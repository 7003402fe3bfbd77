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

	"github.com/smashpoint/league-system/achievements"
	"github.com/smashpoint/league-system/config"
	"github.com/smashpoint/league-system/db"
	"github.com/smashpoint/league-system/handlers"
	"github.com/smashpoint/league-system/live"
	"github.com/smashpoint/league-system/repositories"
	"github.com/smashpoint/league-system/routes"
	"github.com/smashpoint/league-system/services"
	"github.com/smashpoint/league-system/storage"
)

const dbConnectTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.HTTPPort))

	database, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.AvatarStorageConfigured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretKey,
			BucketName:      cfg.R2Bucket,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize avatar storage: %w", err)
		}
	} else {
		logger.Warn("avatar storage not configured, uploads disabled")
	}

	playerRepo := repositories.NewPostgresPlayerRepository(database)
	tournamentRepo := repositories.NewPostgresTournamentRepository(database)
	enrollmentRepo := repositories.NewPostgresEnrollmentRepository(database)
	groupRepo := repositories.NewPostgresGroupRepository(database)
	roundRepo := repositories.NewPostgresRoundRepository(database)
	matchRepo := repositories.NewPostgresMatchRepository(database)
	gameRepo := repositories.NewPostgresGameResultRepository(database)
	challengeRepo := repositories.NewPostgresChallengeRepository(database)
	achievementRepo := repositories.NewPostgresAchievementRepository(database)
	statsRepo := repositories.NewPostgresStatsRepository(database)

	hub := live.NewHub(logger)
	go hub.Run()

	evaluator := achievements.NewEvaluator(playerRepo, achievementRepo, logger)

	authService := services.NewAuthService(playerRepo)
	playerService := services.NewPlayerService(playerRepo, achievementRepo, uploader)
	tournamentService := services.NewTournamentService(database, tournamentRepo, enrollmentRepo, groupRepo, roundRepo, matchRepo, gameRepo, hub)
	bracketService := services.NewBracketService(database, tournamentRepo, enrollmentRepo, groupRepo, roundRepo, matchRepo, playerRepo, hub, evaluator)
	matchService := services.NewMatchService(database, tournamentRepo, enrollmentRepo, roundRepo, matchRepo, gameRepo, playerRepo, hub, evaluator)
	challengeService := services.NewChallengeService(database, challengeRepo, playerRepo, evaluator, cfg.ChallengeTTL)
	statsService := services.NewStatsService(statsRepo, playerRepo)

	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService, cfg.JWTSecret, cfg.TokenTTL),
		Player:     handlers.NewPlayerHandler(playerService),
		Tournament: handlers.NewTournamentHandler(tournamentService, bracketService),
		Match:      handlers.NewMatchHandler(matchService),
		Challenge:  handlers.NewChallengeHandler(challengeService),
		Stats:      handlers.NewStatsHandler(statsService),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService),
	}, []byte(cfg.JWTSecret))

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweepExpiredChallenges(sweepCtx, challengeService, cfg.ChallengeSweepInterval, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// sweepExpiredChallenges periodically expires pending challenges whose
// deadline has passed.
func sweepExpiredChallenges(ctx context.Context, challenges services.ChallengeService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := challenges.ExpireOverdue(ctx)
			if err != nil {
				logger.Error("challenge expiry sweep failed", slog.Any("error", err))
				continue
			}
			if expired > 0 {
				logger.Info("expired overdue challenges", slog.Int64("count", expired))
			}
		}
	}
}
