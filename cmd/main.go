package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/elliot-conan/mindwellness-chat/internal/api"
	"github.com/elliot-conan/mindwellness-chat/internal/auth"
	"github.com/elliot-conan/mindwellness-chat/internal/broadcast"
	"github.com/elliot-conan/mindwellness-chat/internal/config"
	"github.com/elliot-conan/mindwellness-chat/internal/events"
	"github.com/elliot-conan/mindwellness-chat/internal/logger"
	"github.com/elliot-conan/mindwellness-chat/internal/presence"
	"github.com/elliot-conan/mindwellness-chat/internal/realtime"
	"github.com/elliot-conan/mindwellness-chat/internal/repository"
	"github.com/elliot-conan/mindwellness-chat/internal/service"
	"github.com/elliot-conan/mindwellness-chat/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env == "development")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	mc, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var jv *auth.JWTValidator
	if cfg.JWT.Alg == "RS256" {
		jv, err = auth.NewRS256Validator(cfg.JWT.PublicKeyPath)
	} else {
		jv, err = auth.NewHS256Validator(cfg.JWT.HSSecret)
	}
	if err != nil {
		zlog.Fatalw("jwt validator init", "err", err)
	}

	messages := repository.NewMessageRepository(db)
	rooms := repository.NewRoomRepository(db)
	profiles := repository.NewProfileRepository(db)
	notifications := repository.NewNotificationRepository(db)
	reactions := repository.NewReactionRepository(db)

	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessages)
	defer func() { _ = producer.Close() }()
	consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessages, cfg.Kafka.NotificationGroup, zlog)
	defer func() { _ = consumer.Close() }()

	channels := func(roomID string) realtime.Channel {
		return broadcast.NewRedisChannel(rdb, roomID)
	}
	tuning := service.SessionTuning{
		DeliverDebounce: cfg.DeliverDebounce,
		ReadSettle:      cfg.ReadSettle,
		RefreshInterval: cfg.RefreshInterval,
		RetainLimit:     cfg.Realtime.RetainLimit,
	}

	tracker := presence.NewTracker(rdb, presence.DefaultTTL)

	chatSvc := service.NewChatService(messages, rooms, channels, producer, tuning, zlog)
	roomSvc := service.NewRoomService(rooms, profiles, notifications, zlog)
	profileSvc := service.NewProfileService(profiles)
	notificationSvc := service.NewNotificationService(notifications, rooms, zlog)
	reactionSvc := service.NewReactionService(reactions, rdb, zlog)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go consumer.Start(consumerCtx, notificationSvc.HandleMessageCreated)

	wsrv := ws.NewServer(chatSvc, roomSvc, profileSvc, tracker, zlog)
	handlers := api.NewHandlers(messages, chatSvc, roomSvc, profileSvc, notificationSvc, reactionSvc, tracker, zlog)
	app := api.NewServer(handlers, wsrv, jv)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		zlog.Infow("starting chat service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case s := <-sig:
		zlog.Infow("signal received", "signal", s.String())
	}

	stopConsumer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Warnw("fiber shutdown", "err", err)
	}
	zlog.Info("chat service stopped")
}
