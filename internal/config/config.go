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
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis      RedisConfig
	Reference  ReferenceConfig
	Prediction PredictionConfig
	History    HistoryConfig
	Scheduler  SchedulerConfig
	Kafka      KafkaConfig
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ReferenceConfig configures the reference price source and its cache.
type ReferenceConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	StaleAfter          time.Duration
	ServeStaleOnFailure bool
	RatePerSecond       float64
	Burst               int
	PageLimit           int
}

type PredictionConfig struct {
	HistoryWindow      time.Duration
	MinObservations    int
	SeasonalConfigPath string
}

type HistoryConfig struct {
	RetentionDays int
}

type SchedulerConfig struct {
	Enabled            bool
	RefreshCron        string
	PruneCron          string
	TrackedCommodities []string
}

type KafkaConfig struct {
	Brokers    []string
	SalesTopic string
	GroupID    string
}

const defaultReferenceURL = "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"

// DefaultTrackedCommodities mirrors the marketplace's commonly bought list.
var DefaultTrackedCommodities = []string{
	"tomato", "onion", "potato", "carrot", "cabbage",
	"apple", "banana", "orange", "lemon", "ginger",
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	tracked := parseList(getenv("TRACKED_COMMODITIES", ""))
	if len(tracked) == 0 {
		tracked = append([]string(nil), DefaultTrackedCommodities...)
	}

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "harvestprice"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "harvestprice"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "harvestprice.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Reference: ReferenceConfig{
			BaseURL:             strings.TrimSpace(getenv("REFERENCE_API_URL", defaultReferenceURL)),
			APIKey:              strings.TrimSpace(getenv("REFERENCE_API_KEY", "")),
			Timeout:             getenvDuration("REFERENCE_TIMEOUT", 5*time.Second),
			StaleAfter:          getenvDuration("REFERENCE_STALE_AFTER", 24*time.Hour),
			ServeStaleOnFailure: getenvBool("REFERENCE_SERVE_STALE_ON_FAILURE", false),
			RatePerSecond:       getenvFloat("REFERENCE_RATE_PER_SECOND", 2),
			Burst:               getenvInt("REFERENCE_BURST", 4),
			PageLimit:           getenvInt("REFERENCE_PAGE_LIMIT", 100),
		},
		Prediction: PredictionConfig{
			HistoryWindow:      getenvDuration("PREDICTION_HISTORY_WINDOW", 90*24*time.Hour),
			MinObservations:    getenvInt("PREDICTION_MIN_OBSERVATIONS", 5),
			SeasonalConfigPath: strings.TrimSpace(getenv("SEASONAL_CONFIG_PATH", "")),
		},
		History: HistoryConfig{
			RetentionDays: getenvInt("HISTORY_RETENTION_DAYS", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled:            getenvBool("SCHEDULER_ENABLED", true),
			RefreshCron:        getenv("SCHEDULER_REFRESH_CRON", "0 */6 * * *"),
			PruneCron:          getenv("SCHEDULER_PRUNE_CRON", "30 3 * * *"),
			TrackedCommodities: tracked,
		},
		Kafka: KafkaConfig{
			Brokers:    parseList(getenv("KAFKA_BROKERS", "")),
			SalesTopic: getenv("KAFKA_SALES_TOPIC", "marketplace.sale.completed"),
			GroupID:    getenv("KAFKA_GROUP_ID", "harvestprice"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
