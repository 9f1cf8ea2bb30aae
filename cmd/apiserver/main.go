package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"socialchat/internal/config"
	apihandlers "socialchat/internal/handlers/apiserver"
	appKafka "socialchat/internal/kafka"
	"socialchat/internal/middleware"
	appRedis "socialchat/internal/redis"
	"socialchat/internal/services"
	"socialchat/internal/storage"
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

	userRepo := storage.NewGormUserRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("creating kafka producer: %v", err)
	}
	defer kfkProducer.Close()

	authService := services.NewAuthService(userRepo, cfg.Auth)
	userService := services.NewUserService(userRepo)
	conversationService := services.NewConversationService(convoRepo, msgRepo, userRepo)
	messageService := services.NewMessageService(msgRepo, convoRepo, kfkProducer, cfg)

	authHandler := apihandlers.NewAuthHandler(authService, tokenBlacklist)
	userHandler := apihandlers.NewUserHandler(userService)
	messageHandler := apihandlers.NewMessageHandler(conversationService, messageService)

	r := mux.NewRouter()

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(func(next http.Handler) http.Handler {
		return middleware.AuthMiddleware(next, cfg.Auth, tokenBlacklist)
	})

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/conversations", messageHandler.ListConversations).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages/conversations", messageHandler.CreateConversation).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/conversations/{id:[0-9]+}", messageHandler.GetConversationMessages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages", messageHandler.SendMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/messages/{id:[0-9]+}", messageHandler.DeleteMessage).Methods(http.MethodDelete)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handlers.CORS(corsOptions...)(r),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down api server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("api server shutdown: %v", err)
	}
	log.Println("api server stopped")
}
