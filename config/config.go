// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config contains application configuration parameters
type Config struct {
	Env           string `json:"env"`
	Port          string `json:"port"`
	Token         string `json:"token"`
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"webhook_secret"`
	APIToken      string `json:"-"`

	OpenAIKey     string        `json:"openai_key"`
	OpenAIModel   string        `json:"openai_model"`
	OpenAIBaseURL string        `json:"openai_base_url"`
	OracleTimeout time.Duration `json:"oracle_timeout"`
	MaxTokens     int           `json:"max_tokens"`

	DBName        string `json:"db_name"`
	StateBackend  string `json:"state_backend"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	OrderForwardChatID int64   `json:"order_forward_chat_id"`
	OwnerUsername      string  `json:"owner_username"`
	ManagerIDs         []int64 `json:"manager_ids"`

	MaxTurns       int           `json:"max_turns"`
	DupWindow      time.Duration `json:"dup_window"`
	StateRetention int           `json:"state_retention_days"`

	MessagesPerMinute int `json:"messages_per_minute"`
	MessageBurst      int `json:"message_burst"`

	CryptoWallet  string  `json:"crypto_wallet"`
	CryptoUAHRate float64 `json:"crypto_uah_rate"`
	CryptoFeeUSD  int     `json:"crypto_fee_usd"`
}

// NewConfig creates and returns a new configuration instance. Values from a
// local .env file are loaded first; real environment variables win.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	var errs error
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = ":" + strings.TrimPrefix(port, ":")
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.APIToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		cfg.StateBackend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("OWNER_USERNAME"); v != "" {
		cfg.OwnerUsername = strings.TrimPrefix(strings.TrimSpace(v), "@")
	}
	if v := os.Getenv("CRYPTO_WALLET"); v != "" {
		cfg.CryptoWallet = v
	}

	errs = multierr.Append(errs, intEnv("REDIS_DB", &cfg.RedisDB))
	errs = multierr.Append(errs, intEnv("MAX_TURNS", &cfg.MaxTurns))
	errs = multierr.Append(errs, intEnv("MAX_TOKENS", &cfg.MaxTokens))
	errs = multierr.Append(errs, intEnv("CRYPTO_FEE_USD", &cfg.CryptoFeeUSD))
	errs = multierr.Append(errs, intEnv("STATE_RETENTION_DAYS", &cfg.StateRetention))
	errs = multierr.Append(errs, intEnv("RATE_LIMIT_PER_MINUTE", &cfg.MessagesPerMinute))
	errs = multierr.Append(errs, intEnv("RATE_LIMIT_BURST", &cfg.MessageBurst))
	errs = multierr.Append(errs, durationEnv("ORDER_DUP_WINDOW", &cfg.DupWindow))
	errs = multierr.Append(errs, durationEnv("ORACLE_TIMEOUT", &cfg.OracleTimeout))

	if v := os.Getenv("ORDER_FORWARD_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ORDER_FORWARD_CHAT_ID: %w", err))
		}
		cfg.OrderForwardChatID = id
	}
	if v := os.Getenv("MANAGER_USER_IDS"); v != "" {
		ids, err := ParseIDList(v)
		errs = multierr.Append(errs, err)
		cfg.ManagerIDs = ids
	}
	if v := os.Getenv("CRYPTO_UAH_RATE"); v != "" {
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("CRYPTO_UAH_RATE: %w", err))
		}
		cfg.CryptoUAHRate = rate
	}

	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// Default returns a configuration usable in tests and local runs.
func Default() *Config {
	return &Config{
		Env:            "production",
		Port:           ":8080",
		OpenAIModel:    "gpt-4o",
		OracleTimeout:  60 * time.Second,
		MaxTokens:      700,
		DBName:         "simbot.db",
		StateBackend:   BackendSQLite,
		RedisAddr:      "localhost:6379",
		MaxTurns:       8,
		DupWindow:      20 * time.Minute,
		StateRetention: 30,
		CryptoUAHRate:  41.5,
		CryptoFeeUSD:   1,

		MessagesPerMinute: 20,
		MessageBurst:      5,
	}
}

// Validate reports every missing or inconsistent value at once.
func (c *Config) Validate() error {
	var errs error
	if c.Token == "" {
		errs = multierr.Append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.OpenAIKey == "" {
		errs = multierr.Append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.OrderForwardChatID == 0 {
		errs = multierr.Append(errs, errors.New("ORDER_FORWARD_CHAT_ID is required"))
	}
	if len(c.APIToken) < 16 {
		errs = multierr.Append(errs, errors.New("API_TOKEN must be at least 16 characters"))
	}
	switch c.StateBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		errs = multierr.Append(errs, fmt.Errorf("STATE_BACKEND %q is not one of memory, sqlite, redis", c.StateBackend))
	}
	if c.MaxTurns <= 0 {
		errs = multierr.Append(errs, errors.New("MAX_TURNS must be positive"))
	}
	if c.DupWindow <= 0 {
		errs = multierr.Append(errs, errors.New("ORDER_DUP_WINDOW must be positive"))
	}
	return errs
}

// IsManager reports whether the user id belongs to staff.
func (c *Config) IsManager(userID int64) bool {
	for _, id := range c.ManagerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOwner matches the staff chat owner by username, case-insensitively.
func (c *Config) IsOwner(username string) bool {
	if c.OwnerUsername == "" || username == "" {
		return false
	}
	return strings.EqualFold(strings.TrimPrefix(username, "@"), c.OwnerUsername)
}

// ParseIDList parses "1, 2,3" into ids.
func ParseIDList(raw string) ([]int64, error) {
	var ids []int64
	var errs error
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("MANAGER_USER_IDS %q: %w", part, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, errs
}

func intEnv(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func durationEnv(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
