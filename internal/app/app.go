package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/auth/jwt"
	"github.com/mentalmath/arena/internal/config"
	"github.com/mentalmath/arena/internal/db/repository"
	"github.com/mentalmath/arena/internal/leaderboard"
	"github.com/mentalmath/arena/internal/logging"
	"github.com/mentalmath/arena/internal/match"
	"github.com/mentalmath/arena/internal/presence"
	"github.com/mentalmath/arena/internal/rating"
	"github.com/mentalmath/arena/internal/server"
	"github.com/mentalmath/arena/internal/solo"
	ws "github.com/mentalmath/arena/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server) and
// the background scheduler.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool      *pgxpool.Pool
	redis     *redis.Client
	http      *http.Server
	scheduler gocron.Scheduler
}

// New bootstraps config, logger, Postgres, Redis, the domain services and the
// HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN()+" pool_max_conns=10")
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.JWTTTL,
		Issuer: cfg.Security.JWTIssuer,
	})

	matchRepo := repository.NewMatchRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)

	engine := rating.NewEngine(rating.DefaultConfig())
	hub := ws.NewHub(logger)
	notifier := match.NewWSNotifier(hub, logger)

	leaderboardSvc := leaderboard.NewService(redisClient, profileRepo, logger, leaderboard.ServiceOptions{
		TopN: cfg.Leaderboard.TopN,
	})
	presenceSvc := presence.NewService(redisClient, cfg.Presence.TTL, logger)

	coordinator := match.NewCoordinator(matchRepo, profileRepo, engine, notifier, leaderboardSvc, match.Config{
		WaitingTimeout:       cfg.Matchmaking.WaitingTimeout,
		PlayingTimeout:       cfg.Matchmaking.PlayingTimeout,
		DefaultQuestionCount: cfg.Matchmaking.DefaultQuestionCount,
		MaxQuestionCount:     cfg.Matchmaking.MaxQuestionCount,
	}, logger)

	soloSvc := solo.NewService(solo.ServiceOptions{
		Store:         attemptRepo,
		Profiles:      profileRepo,
		Engine:        engine,
		Recorder:      leaderboardSvc,
		Logger:        logger,
		QuestionCount: cfg.Matchmaking.DefaultQuestionCount,
	})

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Matchmaking.SweepInterval),
		gocron.NewTask(func(jobCtx context.Context) {
			if _, err := coordinator.SweepStale(jobCtx); err != nil {
				logger.Warn().Err(err).Msg("stale match sweep failed")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule sweep job: %w", err)
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Handlers{
		Match:       match.NewHTTPHandlers(coordinator, logger),
		Solo:        solo.NewHTTPHandlers(soloSvc, logger),
		Leaderboard: leaderboard.NewHTTPHandler(leaderboardSvc, logger),
		Profiles:    profileRepo,
		Presence:    presenceSvc,
		Hub:         hub,
		Tokens:      tokens,
	})

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		scheduler: scheduler,
	}, nil
}

// Run starts the HTTP server and the sweep scheduler, then waits for
// termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.scheduler.Start()

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := a.scheduler.Shutdown(); err != nil {
		a.logger.Error().Err(err).Msg("scheduler shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
