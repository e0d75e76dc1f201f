package cmd

import (
	"context"
	"fmt"
	"time"

	"jukebox/bot"
	"jukebox/bot/features/history"
	"jukebox/bot/features/music"
	"jukebox/config"
	"jukebox/database"
	"jukebox/events"
	"jukebox/infrastructure"
	"jukebox/infrastructure/observability"
	"jukebox/lavalink"
	"jukebox/player"
	"jukebox/repository"
	"jukebox/service"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
	}).Info("Starting jukebox bot...")

	// Database and schema
	databaseURL := database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)
	if err := database.RunMigrationsWithURL(databaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()

	// Metrics are optional; a failure only disables them
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}
	metrics := observability.GetMetrics()
	metrics.RegisterHandlers(eventBus)

	// Player events go to NATS when servers are configured
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := publisher.EnsurePlayerEventStream(natsClient); err != nil {
			natsClient.Close()
			return fmt.Errorf("failed to create player event stream: %w", err)
		}
		publisher.OnPublished(metrics.RecordNATSMessagePublished)
		publisher.RegisterHandlers(eventBus)
		log.WithField("servers", cfg.NATSServers).Info("Publishing player events to NATS")
	}

	// History persistence
	historyService := service.NewHistoryService(
		repository.NewHistoryRepository(db),
		repository.NewSessionRepository(db),
	)
	historyService.RegisterHandlers(eventBus)

	// Discord session and the audio node it drives
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	lavalinkClient := lavalink.New(lavalink.Config{
		Name:     cfg.LavalinkName,
		Host:     cfg.LavalinkHost,
		Port:     cfg.LavalinkPort,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	}, session)

	notifier := bot.NewChannelNotifier(session, cfg.NotifyRatePerSecond)
	registry := player.NewRegistry(lavalinkClient, notifier, eventBus, player.Options{
		ReadyTimeout:  cfg.ReadyTimeout,
		JoinTimeout:   cfg.JoinTimeout,
		HistoryLimit:  cfg.HistoryLimit,
		DefaultVolume: cfg.DefaultVolume,
	})
	presence := player.NewPresenceMonitor(registry, bot.NewVoiceMembers(session.State), notifier, "", cfg.AloneTimeout)
	resolver := player.NewResolver(lavalinkClient, cfg.SearchPlatform, cfg.SearchCacheSize, cfg.SearchCacheTTL)

	cards, err := music.NewCardGenerator()
	if err != nil {
		return fmt.Errorf("failed to load card fonts: %w", err)
	}

	discordBot, err := bot.New(
		bot.Config{Token: cfg.DiscordToken, GuildID: cfg.DiscordGuildID},
		session,
		presence,
		lavalinkClient,
		music.NewFeature(registry, resolver, cards, metrics),
		history.NewFeature(historyService, registry),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}

	if err := lavalinkClient.Connect(ctx, discordBot.UserID()); err != nil {
		discordBot.Close()
		return fmt.Errorf("failed to connect to lavalink node %s: %w", cfg.LavalinkName, err)
	}
	log.WithField("node", cfg.LavalinkName).Info("Lavalink node ready")

	log.Info("Bot is running")
	<-ctx.Done()

	log.Info("Shutting down bot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Players first so their destroy notices and events still go out
	registry.DestroyAll(shutdownCtx, player.ReasonShutdown)
	presence.Stop()
	notifier.Close(shutdownCtx)

	if err := lavalinkClient.Close(); err != nil {
		log.WithError(err).Warn("Error closing lavalink client")
	}
	if err := discordBot.Close(); err != nil {
		log.WithError(err).Warn("Error closing Discord bot")
	}

	// Let in-flight bus handlers finish their writes
	eventBus.Wait()

	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}

func configureLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
