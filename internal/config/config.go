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
	DBConnMaxIdleTime int

	// Redemption protocol settings. TTLs are clamped server-side so a
	// client cannot request an unbounded-lifetime token.
	TokenTTLDefault time.Duration
	TokenTTLMin     time.Duration
	TokenTTLMax     time.Duration

	// StartingAllowance is the free-redemption balance granted to a user
	// on their first quota check.
	StartingAllowance int

	// CapTimezone is the IANA zone used to compute the daily-cap calendar day.
	CapTimezone string

	// ReferralRewardCredits is granted to both sides of a redeemed referral.
	ReferralRewardCredits int

	ReaperInterval  time.Duration
	ReaperBatchSize int

	RateLimit RateLimitConfig

	SeedDemoData bool

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// RateLimitConfig gates the redis-backed abuse limiter on the issue and
// scan endpoints.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IssueRate  float64
	IssueBurst int
	ScanRate   float64
	ScanBurst  int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "tapsave"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tapsave"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		TokenTTLDefault: getenvSeconds("TOKEN_TTL_DEFAULT_SECONDS", 90),
		TokenTTLMin:     getenvSeconds("TOKEN_TTL_MIN_SECONDS", 10),
		TokenTTLMax:     getenvSeconds("TOKEN_TTL_MAX_SECONDS", 300),

		StartingAllowance:     getenvInt("QUOTA_STARTING_ALLOWANCE", 3),
		CapTimezone:           getenv("CAP_TIMEZONE", "UTC"),
		ReferralRewardCredits: getenvInt("REFERRAL_REWARD_CREDITS", 1),

		ReaperInterval:  getenvSeconds("REAPER_INTERVAL_SECONDS", 60),
		ReaperBatchSize: getenvInt("REAPER_BATCH_SIZE", 500),

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			IssueRate:     getenvFloat("RATE_LIMIT_ISSUE_RATE", 1),
			IssueBurst:    getenvInt("RATE_LIMIT_ISSUE_BURST", 5),
			ScanRate:      getenvFloat("RATE_LIMIT_SCAN_RATE", 3),
			ScanBurst:     getenvInt("RATE_LIMIT_SCAN_BURST", 10),
		},

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 1),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvSeconds(key string, def int) time.Duration {
	return time.Duration(getenvInt(key, def)) * time.Second
}
