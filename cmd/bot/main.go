// Package main is the entry point for the RoW event bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"discord-row-bot/internal/bot"
	"discord-row-bot/internal/config"
	"discord-row-bot/internal/dashboard"
	"discord-row-bot/internal/handler"
	"discord-row-bot/internal/model"
	"discord-row-bot/internal/pkg/cyclelock"
	"discord-row-bot/internal/pkg/jsonstore"
	"discord-row-bot/internal/pkg/ratelimit"
	"discord-row-bot/internal/pkg/retry"
	"discord-row-bot/internal/repository"
	"discord-row-bot/internal/scheduler"
	"discord-row-bot/internal/service"
	"discord-row-bot/internal/sheets"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the JSON document store
	store, err := jsonstore.New(cfg.Bot.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Bot.DataDir).Msg("Failed to open data directory")
	}

	// Initialize repositories
	cycleRepo := repository.NewCycleRepository(store)
	resultRepo := repository.NewResultRepository(store)
	profileRepo := repository.NewProfileRepository(store)
	prefsRepo := repository.NewPrefsRepository(store)

	// One guard serializes all cycle mutations
	guard := cyclelock.NewGuard()

	// Initialize services
	defaultTimes := map[model.Team]string{}
	for name, value := range cfg.Teams.DefaultTimes {
		if team, ok := model.ParseTeam(name); ok {
			defaultTimes[team] = value
		}
	}

	ignService, err := service.NewIGNService(profileRepo, guard)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load profiles")
	}

	lifecycleService, err := service.NewLifecycleService(cycleRepo, resultRepo, guard, defaultTimes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load event cycle")
	}

	resultsService, err := service.NewResultsService(resultRepo, guard, lifecycleService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load match results")
	}

	statsService, err := service.NewStatsService(resultRepo, profileRepo, guard, lifecycleService, resultsService, ignService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build player statistics")
	}

	rosterService := service.NewRosterService(profileRepo, guard, lifecycleService, ignService, cfg.Teams.Capacity)
	notifyService := service.NewNotificationService(prefsRepo, lifecycleService, cfg.Scheduler.Reminders)
	provider := service.NewSnapshotProvider(lifecycleService, resultsService, statsService, ignService, cfg.Teams.Capacity)
	exportService := service.NewExportService(provider, lifecycleService)

	// Initialize the Sheets mirror; any failure degrades to disabled
	reconciler := sheets.NewDisabled()
	if cfg.SheetsEnabled() {
		remote, err := sheets.NewRemote(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID)
		if err != nil {
			log.Warn().Err(err).Msg("Sheets mirroring disabled")
		} else {
			limiter := ratelimit.New(cfg.Sheets.CallsPerMinute, time.Minute, cfg.Sheets.MaxWait)
			reconciler = sheets.NewReconciler(remote, limiter, retry.DefaultPolicy())
		}
	} else {
		log.Info().Msg("Sheets mirroring not configured")
	}

	// Initialize handlers
	ignHandler := handler.NewIGNHandler(ignService)
	rosterHandler := handler.NewRosterHandler(rosterService, lifecycleService, notifyService, ignService)
	resultsHandler := handler.NewResultsHandler(resultsService, statsService, ignService)
	adminHandler := handler.NewAdminHandler(cfg, lifecycleService, ignService, reconciler, provider, exportService)
	notifyHandler := handler.NewNotifyHandler(notifyService)

	// Initialize bot
	discordBot, err := bot.New(&bot.Dependencies{
		Config:         cfg,
		IGNHandler:     ignHandler,
		RosterHandler:  rosterHandler,
		ResultsHandler: resultsHandler,
		AdminHandler:   adminHandler,
		NotifyHandler:  notifyHandler,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	if err := discordBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Discord")
	}

	// Start the weekly cadence
	sched := scheduler.New(cfg, lifecycleService, notifyService, statsService, resultsService, ignService, discordBot)
	go sched.Run(ctx)

	// Start the read-only dashboard
	var dash *dashboard.Server
	if cfg.Dashboard.Enabled {
		dash = dashboard.New(provider, cfg.Dashboard.Listen)
		go func() {
			if err := dash.Start(); err != nil {
				log.Error().Err(err).Msg("Dashboard server failed")
			}
		}()
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	if dash != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dash.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Dashboard shutdown failed")
		}
		shutdownCancel()
	}
	if err := discordBot.Stop(); err != nil {
		log.Error().Err(err).Msg("Bot shutdown failed")
	}
	log.Info().Msg("Bot stopped gracefully")
}
