package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
	Dispatch DispatchConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL   string
	MessagesTable string
}

type QueueConfig struct {
	Brokers       []string
	SendJobTopic  string
	ConsumerGroup string
}

type WebhookConfig struct {
	URL        string
	AuthKey    string
	ContentMax int
}

type DispatchConfig struct {
	Interval     time.Duration
	PendingLimit int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type AuthConfig struct {
	User string
	Pass string
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	errs = append(errs, err)
	brokers, err := requireEnv("KAFKA_BROKERS")
	errs = append(errs, err)
	webhookURL, err := requireEnv("WEBHOOK_URL")
	errs = append(errs, err)

	contentMax, err := getEnvInt("MAX_MESSAGE_LENGTH", 200)
	errs = append(errs, err)
	pendingLimit, err := getEnvInt("PENDING_LIMIT", 2)
	errs = append(errs, err)
	intervalSec, err := getEnvInt("DISPATCH_INTERVAL_SECONDS", 120)
	errs = append(errs, err)

	cfg := &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL:   postgresURL,
			MessagesTable: getEnv("MESSAGES_TABLE", "messages"),
		},
		Queue: QueueConfig{
			Brokers:       splitList(brokers),
			SendJobTopic:  getEnv("SEND_JOB_TOPIC", "message-send-jobs"),
			ConsumerGroup: getEnv("SEND_WORKER_GROUP", "send-worker"),
		},
		Webhook: WebhookConfig{
			URL:        webhookURL,
			AuthKey:    os.Getenv("WEBHOOK_AUTH_KEY"),
			ContentMax: contentMax,
		},
		Dispatch: DispatchConfig{
			Interval:     time.Duration(intervalSec) * time.Second,
			PendingLimit: pendingLimit,
		},
		Auth: AuthConfig{
			User: os.Getenv("AUTH_USER"),
			Pass: os.Getenv("AUTH_PASS"),
		},
	}

	redisCfg, err := loadRedisConfig()
	errs = append(errs, err)
	cfg.Redis = redisCfg

	errs = append(errs, validate(cfg))

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Redis is optional; leaving REDIS_ADDR unset disables the sent cache.
func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	errs = append(errs, err)
	ttlSec, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	errs = append(errs, err)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttlSec) * time.Second,
	}, joinErrors(errs)
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.Dispatch.PendingLimit < 0 || cfg.Dispatch.PendingLimit > 100 {
		errs = append(errs, errors.New("PENDING_LIMIT must be in [0, 100]"))
	}
	if cfg.Dispatch.Interval <= 0 {
		errs = append(errs, errors.New("DISPATCH_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Webhook.ContentMax <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be > 0"))
	}
	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return errors.Join(nonNil...)
}
