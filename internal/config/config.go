package config

import (
	"fmt"
	"time"

	"attendance.service/internal/cache"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ratelimit"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Everything is read from the environment. A .env file in the working
// directory is loaded first when present, without overriding real env vars.

type Config struct {
	ServerPort     string   `mapstructure:"SERVER_PORT"`
	IsLocalDev     bool     `mapstructure:"IS_LOCAL_DEV"`
	ServiceName    string   `mapstructure:"SERVICE_NAME"`
	OTELEndpoint   string   `mapstructure:"OTEL_EXPORTER_ENDPOINT"`
	Timezone       string   `mapstructure:"TIMEZONE"`
	AdminJWTSecret string   `mapstructure:"ADMIN_JWT_SECRET"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	TTLRoster    time.Duration `mapstructure:"TTL_ROSTER"`
	TTLSessions  time.Duration `mapstructure:"TTL_SESSIONS"`
	TTLLedger    time.Duration `mapstructure:"TTL_LEDGER"`
	TTLStats     time.Duration `mapstructure:"TTL_STATS"`
	TTLEmergency time.Duration `mapstructure:"TTL_EMERGENCY"`

	RatePerMinute  int           `mapstructure:"RATE_PER_MINUTE"`
	RatePerHour    int           `mapstructure:"RATE_PER_HOUR"`
	RateBurst      int           `mapstructure:"RATE_BURST"`
	RateBurstReset time.Duration `mapstructure:"RATE_BURST_RESET"`
	EmergencyAfter int           `mapstructure:"EMERGENCY_AFTER"`

	AutoCheckoutEnabled bool     `mapstructure:"AUTO_CHECKOUT_ENABLED"`
	AutoCheckoutHour    int      `mapstructure:"AUTO_CHECKOUT_HOUR"`
	AutoCheckoutMinute  int      `mapstructure:"AUTO_CHECKOUT_MINUTE"`
	AutoCheckoutExempt  []string `mapstructure:"AUTO_CHECKOUT_EXEMPT"`

	// STORE is one of sheets, postgres, memory.
	Store                 string `mapstructure:"STORE"`
	SheetsSpreadsheetID   string `mapstructure:"SHEETS_SPREADSHEET_ID"`
	SheetsCredentialsFile string `mapstructure:"SHEETS_CREDENTIALS_FILE"`
	SheetRoster           string `mapstructure:"SHEET_ROSTER"`
	SheetSessions         string `mapstructure:"SHEET_SESSIONS"`
	SheetLedger           string `mapstructure:"SHEET_LEDGER"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	// NOTIFIER is one of webhook, sqs, kafka, none.
	Notifier       string   `mapstructure:"NOTIFIER"`
	WebhookURL     string   `mapstructure:"WEBHOOK_URL"`
	KafkaBrokers   []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string   `mapstructure:"KAFKA_TOPIC"`
	AWSRegion      string   `mapstructure:"AWS_REGION"`
	AWSEndpoint    string   `mapstructure:"AWS_ENDPOINT"`
	NotifyQueueURL string   `mapstructure:"NOTIFY_SQS_QUEUE_URL"`

	GeocoderURL       string `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string `mapstructure:"GEOCODER_USER_AGENT"`

	SummaryEmailTo   string `mapstructure:"SUMMARY_EMAIL_TO"`
	SummaryEmailFrom string `mapstructure:"SUMMARY_EMAIL_FROM"`

	// Used by attendctl.
	APIURL   string `mapstructure:"API_URL"`
	APIToken string `mapstructure:"API_TOKEN"`
}

// LoadConfig reads configuration from an optional .env file and environment variables.
func LoadConfig() (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read in environment variables that match the keys.
	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decoding config: %w", err)
	}
	if err = config.validate(); err != nil {
		return config, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("IS_LOCAL_DEV", false)
	v.SetDefault("SERVICE_NAME", "attendance-service")
	v.SetDefault("OTEL_EXPORTER_ENDPOINT", "")
	v.SetDefault("TIMEZONE", "Asia/Bangkok")
	v.SetDefault("ADMIN_JWT_SECRET", "")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("TTL_ROSTER", 5*time.Minute)
	v.SetDefault("TTL_SESSIONS", time.Minute)
	v.SetDefault("TTL_LEDGER", 30*time.Second)
	v.SetDefault("TTL_STATS", 2*time.Minute)
	v.SetDefault("TTL_EMERGENCY", time.Hour)

	v.SetDefault("RATE_PER_MINUTE", 50)
	v.SetDefault("RATE_PER_HOUR", 2500)
	v.SetDefault("RATE_BURST", 5)
	v.SetDefault("RATE_BURST_RESET", 5*time.Second)
	v.SetDefault("EMERGENCY_AFTER", 3)

	v.SetDefault("AUTO_CHECKOUT_ENABLED", true)
	v.SetDefault("AUTO_CHECKOUT_HOUR", 23)
	v.SetDefault("AUTO_CHECKOUT_MINUTE", 0)
	v.SetDefault("AUTO_CHECKOUT_EXEMPT", "")

	v.SetDefault("STORE", "memory")
	v.SetDefault("SHEETS_SPREADSHEET_ID", "")
	v.SetDefault("SHEETS_CREDENTIALS_FILE", "")
	v.SetDefault("SHEET_ROSTER", "Employees")
	v.SetDefault("SHEET_SESSIONS", "OnWork")
	v.SetDefault("SHEET_LEDGER", "Attendance")

	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "attendance_db")

	v.SetDefault("NOTIFIER", "none")
	v.SetDefault("WEBHOOK_URL", "http://localhost:8081/")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "attendance.events")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	v.SetDefault("NOTIFY_SQS_QUEUE_URL", "http://localstack:4566/000000000000/attendance-notify-queue")

	v.SetDefault("GEOCODER_URL", "")
	v.SetDefault("GEOCODER_USER_AGENT", "attendance-service/1.0")

	v.SetDefault("SUMMARY_EMAIL_TO", "")
	v.SetDefault("SUMMARY_EMAIL_FROM", "")

	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("API_TOKEN", "")
}

func (c Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.AutoCheckoutHour < 0 || c.AutoCheckoutHour > 23 || c.AutoCheckoutMinute < 0 || c.AutoCheckoutMinute > 59 {
		return fmt.Errorf("invalid auto checkout cutoff %02d:%02d", c.AutoCheckoutHour, c.AutoCheckoutMinute)
	}
	switch c.Store {
	case "sheets":
		if c.SheetsSpreadsheetID == "" {
			return fmt.Errorf("SHEETS_SPREADSHEET_ID is required for the sheets store")
		}
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	switch c.Notifier {
	case "webhook", "sqs", "kafka", "none":
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}
	return nil
}

// Location returns the configured timezone. LoadConfig has already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TTLs returns the base cache TTL per dataset.
func (c Config) TTLs() map[string]time.Duration {
	return map[string]time.Duration{
		string(model.DatasetRoster):   c.TTLRoster,
		string(model.DatasetSessions): c.TTLSessions,
		string(model.DatasetLedger):   c.TTLLedger,
		string(model.DatasetStats):    c.TTLStats,
	}
}

// CacheOptions carries the degraded TTL into the cache.
func (c Config) CacheOptions() []cache.Option {
	return []cache.Option{cache.WithDegradedTTL(c.TTLEmergency)}
}

func (c Config) Limits() ratelimit.Limits {
	return ratelimit.Limits{
		PerMinute:  c.RatePerMinute,
		PerHour:    c.RatePerHour,
		Burst:      c.RateBurst,
		BurstReset: c.RateBurstReset,
	}
}

// SheetNames maps each table to its sheet tab title.
func (c Config) SheetNames() map[model.Dataset]string {
	return map[model.Dataset]string{
		model.DatasetRoster:   c.SheetRoster,
		model.DatasetSessions: c.SheetSessions,
		model.DatasetLedger:   c.SheetLedger,
	}
}
