package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/communet/malmoon-server/internal/chat"
	"github.com/communet/malmoon-server/internal/config"
	"github.com/communet/malmoon-server/internal/db"
	"github.com/communet/malmoon-server/internal/httpapi"
	"github.com/communet/malmoon-server/internal/httpapi/handlers"
	"github.com/communet/malmoon-server/internal/livekit"
	"github.com/communet/malmoon-server/internal/models"
	"github.com/communet/malmoon-server/internal/session"
	"github.com/communet/malmoon-server/internal/store/rabbitmq"
	"github.com/communet/malmoon-server/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	db.AutoMigrate(gdb)

	kv := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StoreTimeout)
	defer kv.Close()

	events, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer events.Close()

	members := models.NewMemberRepo(gdb)
	chatRepo := chat.NewRepo(gdb)
	chatSvc := chat.NewService(chatRepo)
	buffer := chat.NewBuffer(kv, chatRepo)

	rooms := livekit.NewRoomClient(cfg.LiveKitHost, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
	queue := session.NewRetryQueue(kv)

	sessionSvc := session.NewService(
		kv, members, chatSvc, buffer, rooms, queue, events,
		cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.SessionTokenTTL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drain := session.NewDrainScheduler(queue, rooms, cfg.RetryDrainInterval, cfg.RetryBatchSize, cfg.RetryMaxAttempts)
	go drain.Run(ctx)

	h := handlers.NewHandler(gdb, cfg, members, sessionSvc, chatSvc, buffer, events)
	r := httpapi.NewRouter(cfg, h)

	log.Printf("server listening addr=%s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
