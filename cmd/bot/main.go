package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"metro_report_bot/internal/broadcast"
	"metro_report_bot/internal/config"
	"metro_report_bot/internal/health"
	"metro_report_bot/internal/logging"
	"metro_report_bot/internal/retry"
	"metro_report_bot/internal/state"
	"metro_report_bot/internal/store"
	"metro_report_bot/internal/sweeper"
	"metro_report_bot/internal/telegram"
	"metro_report_bot/internal/wizard"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	vehicleSeedTimeout      = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		fmt.Println("configuration check: ok")
		fmt.Println(cfg.FormatRedacted())
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
		"channel":  cfg.ChannelID,
	}).Info("configuration loaded")

	var manager *store.Manager
	err = retry.StartupPolicy.Do(context.Background(), func() error {
		connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
		defer cancel()

		var connectErr error
		manager, connectErr = store.NewManager(connectCtx, cfg)
		if connectErr != nil {
			logger.WithField("event", "mongo_connect_retry").WithError(connectErr).Warn("mongo connection failed, retrying")
		}
		return connectErr
	})
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = manager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}

	userRepo := store.NewUserRepository(manager.Users())
	banRepo := store.NewBanRepository(manager.Bans())
	stateRepo := store.NewStateRepository(manager.States())
	vehicleRepo := store.NewVehicleRepository(manager.Vehicles())
	statsProvider := store.NewStatsProvider(manager.Users(), manager.Bans(), manager.Vehicles())

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), vehicleSeedTimeout)
	seeded, err := vehicleRepo.SeedDefaults(seedCtx)
	cancelSeed()
	if err != nil {
		logger.WithError(err).Error("vehicle seed error")
		fmt.Fprintf(os.Stderr, "vehicle seed error: %v\n", err)
		os.Exit(1)
	}
	if seeded {
		logger.WithField("event", "vehicles_seeded").Info("installed default vehicle list")
	}

	engine := state.NewEngine(stateRepo)
	messenger := telegram.NewMessenger()

	publisher, err := telegram.NewChannelPublisher(messenger, cfg.ChannelID)
	if err != nil {
		fatal(logger, "channel publisher setup error", err)
	}

	controller, err := wizard.NewController(engine, banRepo, vehicleRepo, messenger, publisher, wizard.Limits{
		MaxVehicleNameLength: cfg.MaxVehicleName,
		MaxCommentLength:     cfg.MaxComment,
	}, logger)
	if err != nil {
		fatal(logger, "wizard setup error", err)
	}

	dispatcher, err := broadcast.NewDispatcher(messenger, cfg.BroadcastRate, cfg.BroadcastWindow, logger)
	if err != nil {
		fatal(logger, "broadcast setup error", err)
	}
	pending := broadcast.NewPendingStore(0)

	admin, err := telegram.NewAdmin(userRepo, banRepo, vehicleRepo, statsProvider, engine, messenger, dispatcher, pending, cfg.MaxBroadcast, logger)
	if err != nil {
		fatal(logger, "admin setup error", err)
	}

	router, err := telegram.NewRouter(cfg, controller, admin, engine, userRepo, messenger, logger)
	if err != nil {
		fatal(logger, "router setup error", err)
	}

	var tgClient *telegram.Client
	err = retry.StartupPolicy.Do(context.Background(), func() error {
		var clientErr error
		tgClient, clientErr = telegram.NewClient(cfg.TelegramToken, router, logger)
		if clientErr != nil {
			logger.WithField("event", "telegram_connect_retry").WithError(clientErr).Warn("telegram client setup failed, retrying")
		}
		return clientErr
	})
	if err != nil {
		fatal(logger, "telegram client setup error", err)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthServer := health.NewServer(cfg.HTTPPort, manager, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	stateSweeper, err := sweeper.New(stateRepo, cfg.SweepInterval, cfg.StateTimeout, logger)
	if err != nil {
		fatal(logger, "sweeper setup error", err)
	}
	if err := stateSweeper.Start(signalCtx); err != nil {
		fatal(logger, "sweeper start error", err)
	}

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	stateSweeper.Stop()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := manager.Close(closeCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelClose()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func fatal(logger *logrus.Entry, msg string, err error) {
	logger.WithError(err).Error(msg)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
