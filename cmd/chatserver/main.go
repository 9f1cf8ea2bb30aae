package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	redisDriver "github.com/redis/go-redis/v9"

	"socialchat/internal/chatwire"
	"socialchat/internal/config"
	"socialchat/internal/handlers/chatserver"
	appKafka "socialchat/internal/kafka"
	appRedis "socialchat/internal/redis"
	"socialchat/internal/services"
	"socialchat/internal/storage"
	"socialchat/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("initializing database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("migrating database tables: %v", err)
	}

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("connecting to redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating kafka producer: %v", err)
	}
	defer kfkProducer.Close()

	msgRepo := storage.NewGormMessageRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	userRepo := storage.NewGormUserRepository(db)

	messageService := services.NewMessageService(msgRepo, convoRepo, kfkProducer, cfg)
	conversationService := services.NewConversationService(convoRepo, msgRepo, userRepo)

	hub := websocket.NewHub()
	go hub.Run()

	wsHandler := chatserver.NewWebSocketHandler(hub, messageService, conversationService, tokenBlacklist, cfg)

	inboundConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating inbound kafka consumer: %v", err)
	}
	defer inboundConsumer.Close()

	outboundConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating outbound kafka consumer: %v", err)
	}
	defer outboundConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	// The inbound consumer persists raw client frames and republishes the
	// stored message as deliveries on the outbound topic.
	go func() {
		topics := []string{cfg.Kafka.InboundTopic}
		log.Printf("inbound consumer listening on %s", cfg.Kafka.InboundTopic)
		err := inboundConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, messageService.ProcessKafkaMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("inbound consumer: %v", err)
		}
	}()

	// The outbound consumer hands deliveries to the hub, which routes each
	// one to its target user's connection when present.
	go func() {
		topics := []string{cfg.Kafka.OutboundTopic}
		log.Printf("outbound consumer listening on %s", cfg.Kafka.OutboundTopic)
		err := outboundConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup,
			func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
				var delivery chatwire.Delivery
				if err := json.Unmarshal(kafkaMsg.Value, &delivery); err != nil {
					log.Printf("dropping undecodable delivery: %v", err)
					return nil
				}
				hub.Deliver(&delivery)
				return nil
			})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbound consumer: %v", err)
		}
	}()

	router := http.NewServeMux()
	router.HandleFunc(cfg.ChatServer.WebSocketPath, wsHandler.ServeWS)

	serverAddr := fmt.Sprintf("%s:%s", cfg.ChatServer.Host, cfg.ChatServer.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        router,
		ReadTimeout:    cfg.ChatServer.ReadTimeout,
		WriteTimeout:   cfg.ChatServer.WriteTimeout,
		MaxHeaderBytes: cfg.ChatServer.MaxHeaderBytes,
	}

	go func() {
		log.Printf("chat server listening on %s%s", serverAddr, cfg.ChatServer.WebSocketPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("chat server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down chat server")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("chat server shutdown: %v", err)
	}
	log.Println("chat server stopped")
}
