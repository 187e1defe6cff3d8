package config

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	MinIO    MinIOConfig
	Chat     ChatConfig
	Log      LogConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string // postgres | mysql
	URI      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URI          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ChatConfig struct {
	CallInviteTimeout  time.Duration
	CallSweepInterval  time.Duration
	FinishedCallTTL    time.Duration
	DefaultPageSize    int
	MaxPageSize        int
	UserCacheTTL       time.Duration
	RateLimitPerMinute int
	PresenceRefresh    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig reads an optional .env file, then environment variables over defaults.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		ConfigInstance = load(viper.New())
	})

	return ConfigInstance, nil
}

func load(v *viper.Viper) *Config {
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Host:           v.GetString("CHAT_HOST"),
			Port:           v.GetString("CHAT_PORT"),
			ReadTimeout:    v.GetDuration("CHAT_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("CHAT_WRITE_TIMEOUT"),
			IdleTimeout:    v.GetDuration("CHAT_IDLE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			URI:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			URI:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("CHAT_JWT_SECRET"),
			ExpirationTime: v.GetDuration("CHAT_JWT_EXPIRE"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Chat: ChatConfig{
			CallInviteTimeout:  v.GetDuration("CALL_INVITE_TIMEOUT"),
			CallSweepInterval:  v.GetDuration("CALL_SWEEP_INTERVAL"),
			FinishedCallTTL:    v.GetDuration("CALL_FINISHED_TTL"),
			DefaultPageSize:    v.GetInt("CHAT_PAGE_SIZE"),
			MaxPageSize:        v.GetInt("CHAT_MAX_PAGE_SIZE"),
			UserCacheTTL:       v.GetDuration("USER_CACHE_TTL"),
			RateLimitPerMinute: v.GetInt("CHAT_RATE_LIMIT"),
			PresenceRefresh:    v.GetDuration("PRESENCE_REFRESH_INTERVAL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CHAT_PORT", "8080")
	v.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("CHAT_JWT_SECRET", "secret")
	v.SetDefault("CHAT_JWT_EXPIRE", "24h")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("KAFKA_TOPIC", "chat.events")
	v.SetDefault("MINIO_BUCKET", "chat-exports")
	v.SetDefault("CALL_INVITE_TIMEOUT", 60*time.Second)
	v.SetDefault("CALL_SWEEP_INTERVAL", 5*time.Second)
	v.SetDefault("PRESENCE_REFRESH_INTERVAL", 2*time.Minute)
	v.SetDefault("CALL_FINISHED_TTL", 10*time.Minute)
	v.SetDefault("CHAT_PAGE_SIZE", 50)
	v.SetDefault("CHAT_MAX_PAGE_SIZE", 100)
	v.SetDefault("USER_CACHE_TTL", 5*time.Minute)
	v.SetDefault("CHAT_RATE_LIMIT", 200)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// DSN builds a driver specific connection string when DATABASE_URL is not set.
func (d DatabaseConfig) DSN() string {
	if d.URI != "" {
		return d.URI
	}
	if d.Driver == "mysql" {
		return d.User + ":" + d.Password + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.DBName +
			"?charset=utf8mb4&parseTime=True&loc=Local"
	}
	return "host=" + d.Host + " port=" + d.Port + " user=" + d.User + " password=" + d.Password +
		" dbname=" + d.DBName + " sslmode=" + d.SSLMode
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
