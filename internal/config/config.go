package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Paystack PaystackConfig
	Exchange ExchangeConfig

	Turnstile TurnstileConfig
	Slack     SlackConfig

	QR    QRConfig
	Redis RedisConfig
}

// PaystackConfig carries the gateway credentials and endpoints.
type PaystackConfig struct {
	SecretKey         string
	PublicKey         string
	BaseURL           string
	InitializeTimeout time.Duration
	VerifyTimeout     time.Duration
}

// ExchangeConfig carries the exchange rate API settings.
type ExchangeConfig struct {
	APIURL       string
	Timeout      time.Duration
	FallbackRate string
	DisplayURL   string
}

type TurnstileConfig struct {
	SecretKey string
	Timeout   time.Duration
}

type SlackConfig struct {
	WebhookURL string
	Channel    string
}

type QRConfig struct {
	BaseURL  string
	Scale    int
	CacheTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "patron"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "patron"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Paystack: PaystackConfig{
			SecretKey:         strings.TrimSpace(getenv("PAYSTACK_SECRET_KEY", "")),
			PublicKey:         strings.TrimSpace(getenv("PAYSTACK_PUBLIC_KEY", "")),
			BaseURL:           strings.TrimRight(getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"), "/"),
			InitializeTimeout: getenvDuration("PAYSTACK_INITIALIZE_TIMEOUT", 15*time.Second),
			VerifyTimeout:     getenvDuration("PAYSTACK_VERIFY_TIMEOUT", 10*time.Second),
		},
		Exchange: ExchangeConfig{
			APIURL:       getenv("EXCHANGE_RATE_API_URL", "https://api.frankfurter.app/latest"),
			Timeout:      getenvDuration("EXCHANGE_RATE_TIMEOUT", 10*time.Second),
			FallbackRate: getenv("EXCHANGE_RATE_FALLBACK", "0.05"),
			DisplayURL:   getenv("EXCHANGE_RATE_DISPLAY_URL", "https://www.frankfurter.app"),
		},
		Turnstile: TurnstileConfig{
			SecretKey: strings.TrimSpace(getenv("TURNSTILE_SECRET_KEY", "")),
			Timeout:   getenvDuration("TURNSTILE_TIMEOUT", 5*time.Second),
		},
		Slack: SlackConfig{
			WebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
			Channel:    getenv("SLACK_CHANNEL", "#feedback"),
		},
		QR: QRConfig{
			BaseURL:  strings.TrimRight(getenv("QR_CODE_BASE_URL", "http://localhost:8080"), "/"),
			Scale:    getenvInt("QR_CODE_SCALE", 8),
			CacheTTL: getenvDuration("QR_CODE_CACHE_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
