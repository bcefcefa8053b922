package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swarm-backend/internal/config"
	"swarm-backend/internal/handlers"
	"swarm-backend/internal/repository"
	"swarm-backend/internal/repository/memory"
	"swarm-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type stores struct {
	users   services.UserRepository
	swarms  services.SwarmRepository
	rewards services.RewardRepository
	close   func()
}

func Run() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.close()

	loc, _ := cfg.Swarm.Location()
	statsEvery, _ := cfg.Swarm.StatsEvery()

	// Initialize services
	metrics := services.NewMetrics()
	wsHub := services.NewWSHub()

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.APNs.Enabled() {
		apns, err := services.NewAPNsNotifier(cfg.APNs.KeyFile, cfg.APNs.KeyID, cfg.APNs.TeamID, cfg.APNs.Topic, cfg.APNs.Production)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		notifier = apns
		log.Info().Bool("production", cfg.APNs.Production).Msg("Push notifications enabled")
	}
	events := services.NewEventPublisher(st.users, wsHub, notifier)

	userService := services.NewUserService(st.users, cfg.JWT.Secret)
	codes := services.NewCodeGenerator(cfg.Swarm.CodeAlphabet, cfg.Swarm.CodeLength, cfg.Swarm.CodeAttempts)
	swarmService := services.NewSwarmService(st.swarms, st.users, codes, services.SwarmOptions{
		MaxMembers:    cfg.Swarm.MaxMembers,
		InviteBaseURL: cfg.Swarm.InviteBaseURL,
		Location:      loc,
	}, events, metrics)
	streakService := services.NewStreakService(st.swarms, cfg.Swarm.StreakBonuses, events, metrics)
	badgeService := services.NewBadgeService(st.swarms, st.users, cfg.Swarm.Badges, events, metrics)
	rewardService := services.NewRewardService(st.rewards, st.users, events, metrics)
	activityService := services.NewActivityService(st.users, streakService, badgeService, rewardService, events, loc)

	var emblemService *services.EmblemService
	if cfg.AWS.Enabled() {
		emblemService, err = services.NewEmblemService(ctx, st.swarms, services.EmblemConfig{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
			PublicURL: cfg.AWS.PublicURL,
		}, events)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create emblem service")
		}
	}

	monitor, err := services.NewStreakMonitor(st.swarms, loc, statsEvery, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create streak monitor")
	}
	monitor.Start()

	// Initialize handlers
	router := &handlers.Router{
		Users:     handlers.NewUserHandler(userService),
		Swarms:    handlers.NewSwarmHandler(swarmService, emblemService),
		Activity:  handlers.NewActivityHandler(activityService),
		Rules:     handlers.NewRulesHandler(swarmService, streakService, badgeService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, userService, swarmService),
		Auth:      userService,
		Metrics:   metrics,
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := monitor.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop streak monitor")
	}

	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStores connects the configured storage backend
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		mem := memory.New()
		return &stores{
			users:   mem.Users(),
			swarms:  mem.Swarms(),
			rewards: mem.Rewards(),
			close:   func() {},
		}, nil
	}

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("Database schema is up to date")
	}

	return &stores{
		users:   repository.NewUserRepository(db),
		swarms:  repository.NewSwarmRepository(db),
		rewards: repository.NewRewardRepository(db),
		close:   db.Close,
	}, nil
}

// setupLogger configures zerolog logger
func setupLogger(level string, pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
