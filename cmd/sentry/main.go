package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Capitan-Parrot/camera-sentry/internal/config"
	"github.com/Capitan-Parrot/camera-sentry/internal/controller"
	"github.com/Capitan-Parrot/camera-sentry/internal/database"
	"github.com/Capitan-Parrot/camera-sentry/internal/detect"
	"github.com/Capitan-Parrot/camera-sentry/internal/kafka"
	"github.com/Capitan-Parrot/camera-sentry/internal/models"
	"github.com/Capitan-Parrot/camera-sentry/internal/motion"
	"github.com/Capitan-Parrot/camera-sentry/internal/notify"
	"github.com/Capitan-Parrot/camera-sentry/internal/source"
	"github.com/Capitan-Parrot/camera-sentry/internal/storage"
	"github.com/Capitan-Parrot/camera-sentry/internal/supervisor"
	"github.com/Capitan-Parrot/camera-sentry/internal/watchdog"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrNoFeeds) {
			logger.Fatal("no feeds configured, nothing to watch")
		}
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Artifact sink
	var store storage.Store
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3(
			cfg.Storage.Minio.Endpoint,
			cfg.Storage.Minio.AccessKey,
			cfg.Storage.Minio.SecretKey,
			cfg.Storage.Minio.CaptureBucket,
			cfg.Storage.Minio.DetectionBucket,
		)
		if err != nil {
			logger.Fatal("failed to init MinIO storage", zap.Error(err))
		}
	default:
		store, err = storage.NewLocal(cfg.Storage.Dir)
		if err != nil {
			logger.Fatal("failed to init local storage", zap.Error(err))
		}
	}

	// Optional event store
	var db *database.Database
	if cfg.Postgres.DSN != "" {
		db, err = database.New(cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("failed to connect to Postgres", zap.Error(err))
		}
		defer db.Close()
		if err := db.Init(); err != nil {
			logger.Fatal("failed to init database schema", zap.Error(err))
		}
	}

	detector := detect.NewClient(
		cfg.Detection.Endpoint,
		cfg.Detection.ConfidenceThreshold,
		cfg.Detection.Classes,
		cfg.Detection.Timeout.Std(),
		cfg.Detection.MaxConcurrent,
	)

	// Notification boundary
	var notifiers []notify.Notifier
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AlertTopic != "" {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			logger.Fatal("failed to create Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		notifiers = append(notifiers, notify.NewKafka(producer))
	}
	if cfg.Alerts.SMTP.Server != "" && len(cfg.Alerts.Recipients) > 0 {
		notifiers = append(notifiers, notify.NewEmail(
			cfg.Alerts.SMTP.Server,
			cfg.Alerts.SMTP.Port,
			cfg.Alerts.SMTP.User,
			cfg.Alerts.SMTP.Password,
			cfg.Alerts.Recipients,
		))
	}
	if len(notifiers) == 0 {
		logger.Warn("no notifiers configured, alerts will only be logged")
	}
	notifier := notify.NewMulti(notifiers...)

	motionDetector := motion.Detector{
		DiffThreshold: cfg.Motion.PixelDiffThreshold,
		MinArea:       cfg.Motion.MinArea,
		Measure:       motion.Measure(cfg.Motion.Measure),
	}

	var runners []supervisor.Runner
	for _, feed := range cfg.Feeds {
		src, err := source.New(feed.URL)
		if err != nil {
			// Fatal to this feed only; the rest still start.
			logger.Error("skipping feed with invalid source",
				zap.String("feed", feed.Name), zap.Error(err))
			if db != nil {
				if err := db.UpsertFeedStatus(ctx, feed.Name, models.StatusFailed); err != nil {
					logger.Warn("failed to update feed status",
						zap.String("feed", feed.Name), zap.Error(err))
				}
			}
			continue
		}

		var recorder controller.Recorder
		if db != nil {
			recorder = db
		}

		runners = append(runners, controller.New(
			controller.Config{
				Feed:              feed.Name,
				Motion:            motionDetector,
				DetectionCooldown: cfg.Detection.Cooldown.Std(),
				AlertLabels:       cfg.Alerts.Labels,
				AlertCooldown:     cfg.Alerts.Cooldown.Std(),
				ReconnectDelay:    cfg.Stream.ReconnectDelay.Std(),
				FrameInterval:     cfg.Stream.FrameInterval.Std(),
			},
			src, detector, store, notifier, recorder, logger,
		))
	}
	if len(runners) == 0 {
		logger.Fatal("no feed could be started")
	}

	sup := supervisor.New(runners, logger)
	sup.Start(ctx)

	if db != nil {
		go watchdog.New(db, logger).Start(ctx)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.CommandTopic != "" {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CommandTopic, logger)
		if err != nil {
			logger.Fatal("failed to create Kafka consumer", zap.Error(err))
		}
		defer consumer.Close()
		consumer.StartListening(ctx)
		go sup.ListenCommands(ctx, consumer)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")
	cancel()
	sup.Stop()
}
