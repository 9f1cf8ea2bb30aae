package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIServerConfig holds configuration for the REST API server.
type APIServerConfig struct {
	Host string     `mapstructure:"HOST"`
	Port string     `mapstructure:"PORT"`
	CORS CORSConfig `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// ChatServerConfig holds configuration for the WebSocket chat server.
type ChatServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	WebSocketPath  string        `mapstructure:"WEBSOCKET_PATH"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"BROKERS"`
	ClientID      string   `mapstructure:"CLIENT_ID"`
	InboundTopic  string   `mapstructure:"INBOUND_TOPIC"`  // raw client frames, chatserver -> pipeline
	OutboundTopic string   `mapstructure:"OUTBOUND_TOPIC"` // stored messages, pipeline -> hub delivery
	ConsumerGroup string   `mapstructure:"CONSUMER_GROUP"`
	Protocol      string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// AuthConfig holds configuration for authentication (JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// WebSocketConfig holds tuning for server-side WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// ClientConfig holds configuration for the chat client (REST + transport).
type ClientConfig struct {
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	ChatWSURL  string `mapstructure:"CHAT_WS_URL"`

	// Reconnect policy for the socket transport.
	ReconnectBaseDelay time.Duration `mapstructure:"RECONNECT_BASE_DELAY"`
	ReconnectMaxDelay  time.Duration `mapstructure:"RECONNECT_MAX_DELAY"`
	ReconnectMaxTries  int           `mapstructure:"RECONNECT_MAX_TRIES"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string           `mapstructure:"APP_NAME"`
	AppVersion string           `mapstructure:"APP_VERSION"`
	LogLevel   string           `mapstructure:"LOG_LEVEL"`
	APIServer  APIServerConfig  `mapstructure:"API_SERVER"`
	ChatServer ChatServerConfig `mapstructure:"CHAT_SERVER"`
	Kafka      KafkaConfig      `mapstructure:"KAFKA"`
	Database   DatabaseConfig   `mapstructure:"DATABASE"`
	Redis      RedisConfig      `mapstructure:"REDIS"`
	Auth       AuthConfig       `mapstructure:"AUTH"`
	WebSocket  WebSocketConfig  `mapstructure:"WEBSOCKET"`
	Client     ClientConfig     `mapstructure:"CLIENT"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "socialchat")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")

	// API server defaults
	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8080")
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	// Chat server defaults
	v.SetDefault("CHAT_SERVER.HOST", "0.0.0.0")
	v.SetDefault("CHAT_SERVER.PORT", "8081")
	v.SetDefault("CHAT_SERVER.WEBSOCKET_PATH", "/ws/chat")
	v.SetDefault("CHAT_SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_SERVER.MAX_HEADER_BYTES", 1<<20) // 1 MB

	// Kafka defaults
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "socialchat")
	v.SetDefault("KAFKA.INBOUND_TOPIC", "chat-inbound")
	v.SetDefault("KAFKA.OUTBOUND_TOPIC", "chat-outbound")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "chat-server-group")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	// Database defaults
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "socialchat_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	// Redis defaults
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	// Auth defaults
	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)

	// WebSocket defaults
	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 4096)

	// Client defaults
	v.SetDefault("CLIENT.API_BASE_URL", "http://localhost:8080")
	v.SetDefault("CLIENT.CHAT_WS_URL", "ws://localhost:8081/ws/chat")
	v.SetDefault("CLIENT.RECONNECT_BASE_DELAY", 500*time.Millisecond)
	v.SetDefault("CLIENT.RECONNECT_MAX_DELAY", 30*time.Second)
	v.SetDefault("CLIENT.RECONNECT_MAX_TRIES", 10)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// Config file not found; defaults plus environment cover everything.
	}

	err = v.Unmarshal(&config)
	return
}
