package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"appointment-service/internal/api"
	"appointment-service/internal/config"
	"appointment-service/internal/db"
	"appointment-service/internal/feeds"
	"appointment-service/internal/kafka"
	"appointment-service/internal/logging"
	"appointment-service/internal/matcher"
	"appointment-service/internal/providers"
	"appointment-service/internal/reconcile"
	"appointment-service/internal/reminder"
	"appointment-service/internal/services"
	"appointment-service/pkg/email"
	"appointment-service/pkg/sms"
	"appointment-service/pkg/telegram"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.Migrate(ctx); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}

	feedsFile, err := config.LoadFeeds(cfg.Feeds.File)
	if err != nil {
		log.Fatalf("Failed to load feeds file %s: %v", cfg.Feeds.File, err)
	}
	logger.Infof("Loaded feeds for %d owners", len(feedsFile.Owners))

	// Reconciliation
	httpClient := &http.Client{Timeout: 20 * time.Second}
	adapter := feeds.NewAdapter(
		feeds.NewICSReader(httpClient, cfg.Location, logger),
		feeds.NewJSONReader(httpClient, cfg.Location, logger),
		feeds.NewGoogleReader(httpClient, cfg.Google.APIKey, "", logger),
		logger,
	)
	filter := reconcile.NewFilter(matcher.Default(cfg.Location))
	coordinator := reconcile.NewCoordinator(filter, dbConn, adapter, feedsFile, logger)

	// Notification channels
	var tg providers.TelegramSender
	if cfg.Telegram.BotToken != "" {
		client, err := telegram.New(cfg.Telegram.BotToken, "")
		if err != nil {
			logger.Errorf("Telegram disabled: %v", err)
		} else {
			tg = client
		}
	}
	var phone providers.SMSSender
	if cfg.SMS.AccountSID != "" && cfg.SMS.AuthToken != "" {
		phone = sms.New(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
	}
	var mail providers.EmailSender
	sender := email.Sender{
		Server:   cfg.Email.SMTPServer,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		FromName: cfg.Email.FromName,
	}
	if sender.Configured() {
		mail = sender
	}
	gateway := providers.NewGateway(cfg, tg, phone, mail, logger)

	// Reminders
	hub := services.NewWebSocketManager(logger)
	dispatcher := services.NewDispatcher(gateway, dbConn, hub, cfg.Notification.DispatchConcurrency, logger)
	engine := reminder.NewEngine(cfg.Location, logger)
	scheduler := services.NewScheduler(dbConn, engine, dispatcher, cfg.Notification.Lookahead, logger)
	appointments := services.NewAppointmentService(dbConn, dbConn, scheduler, dispatcher, coordinator, cfg.Location, logger)

	svc := services.New(dbConn, dispatcher, logger, cfg)
	var wg sync.WaitGroup
	if err := svc.Start(&wg); err != nil {
		log.Fatalf("Failed to start reminder sweeper: %v", err)
	}

	feedCron := cron.New()
	if _, err := feedCron.AddFunc(cfg.Feeds.RefreshCron, func() {
		coordinator.RefreshAll(ctx, feedsFile.OwnerNames())
	}); err != nil {
		log.Fatalf("Invalid FEED_REFRESH_CRON %q: %v", cfg.Feeds.RefreshCron, err)
	}
	feedCron.Start()
	go coordinator.RefreshAll(ctx, feedsFile.OwnerNames())

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, appointments, logger)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
		consumer.Start(ctx, &wg)
	}

	// Start API server
	router := api.NewRouter(api.Deps{
		Appointments: appointments,
		Calendar:     coordinator,
		Settings:     scheduler,
		Records:      dbConn,
		Hub:          hub,
	}, logger, cfg)
	server := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	<-feedCron.Stop().Done()
	svc.Stop()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
}
