package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Razorpay   RazorpayConfig
	Twilio     TwilioConfig
	Email      EmailConfig
	Mapbox     MapboxConfig
	Firebase   FirebaseConfig
	Session    SessionConfig
	Kafka      KafkaConfig
	Cloudinary CloudinaryConfig
	Jobs       JobsConfig
	Payments   PaymentsConfig
	LogLevel   string
	LogFormat  string
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// Configured reports whether both gateway credentials are present.
func (c RazorpayConfig) Configured() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type EmailConfig struct {
	Provider      string // "resend" or "smtp"
	ResendAPIKey  string
	ResendBaseURL string
	From          string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
}

type MapboxConfig struct {
	AccessToken string
	BaseURL     string
}

type FirebaseConfig struct {
	APIKey  string
	BaseURL string
}

type SessionConfig struct {
	JWTSecret string
	TTL       time.Duration
	AppURL    string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// Enabled reports whether at least one broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (c CloudinaryConfig) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type JobsConfig struct {
	SettlementSyncInterval time.Duration
	OTPCleanupInterval     time.Duration
	DLQRetryInterval       time.Duration
}

type PaymentsConfig struct {
	Currency              string
	PlatformFeePercentage decimal.Decimal
}

// Load reads .env (if any) and the process environment into a Config.
func Load() (*Config, error) {
	envLocations := []string{
		".env",
		"config/.env",
		"../config/.env",
		"../../config/.env",
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		log.Println("No .env file found, using environment variables")
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: get("HTTP_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:      get("DATABASE_URL", ""),
			Host:     get("DB_HOST", "localhost"),
			Port:     get("DB_PORT", "5432"),
			User:     get("DB_USER", "postgres"),
			Password: get("DB_PASSWORD", ""),
			Name:     get("DB_NAME", "postgres"),
			SSLMode:  get("DB_SSLMODE", "disable"),
		},
		Razorpay: RazorpayConfig{
			KeyID:         get("RAZORPAY_KEY_ID", ""),
			KeySecret:     get("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: get("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Twilio: TwilioConfig{
			AccountSID: get("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  get("TWILIO_AUTH_TOKEN", ""),
			FromNumber: get("TWILIO_PHONE_NUMBER", ""),
			BaseURL:    get("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(get("EMAIL_PROVIDER", "resend")),
			ResendAPIKey:  get("RESEND_API_KEY", ""),
			ResendBaseURL: get("RESEND_BASE_URL", "https://api.resend.com"),
			From:          get("EMAIL_FROM", ""),
			SMTPHost:      get("SMTP_HOST", "smtp.gmail.com"),
			SMTPUser:      get("SMTP_USER", ""),
			SMTPPass:      get("SMTP_PASS", ""),
		},
		Mapbox: MapboxConfig{
			AccessToken: get("MAPBOX_ACCESS_TOKEN", ""),
			BaseURL:     get("MAPBOX_BASE_URL", "https://api.mapbox.com"),
		},
		Firebase: FirebaseConfig{
			APIKey:  get("FIREBASE_API_KEY", ""),
			BaseURL: get("FIREBASE_BASE_URL", "https://identitytoolkit.googleapis.com"),
		},
		Session: SessionConfig{
			JWTSecret: get("JWT_SECRET", ""),
			AppURL:    strings.TrimRight(get("APP_URL", "http://localhost:5173"), "/"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(get("KAFKA_BROKERS", "")),
			GroupID: get("KAFKA_GROUP_ID", "salon-payments"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: get("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    get("CLOUDINARY_API_KEY", ""),
			APISecret: get("CLOUDINARY_API_SECRET", ""),
			Folder:    get("CLOUDINARY_FOLDER", "receipts"),
		},
		Payments: PaymentsConfig{
			Currency: get("DEFAULT_CURRENCY", "INR"),
		},
		LogLevel:  get("LOG_LEVEL", "info"),
		LogFormat: get("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Email.SMTPPort, err = strconv.Atoi(get("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", "15s", &cfg.Server.ShutdownTimeout},
		{"SESSION_TTL", "24h", &cfg.Session.TTL},
		{"SETTLEMENT_SYNC_INTERVAL", "6h", &cfg.Jobs.SettlementSyncInterval},
		{"OTP_CLEANUP_INTERVAL", "10m", &cfg.Jobs.OTPCleanupInterval},
		{"DLQ_RETRY_INTERVAL", "5m", &cfg.Jobs.DLQRetryInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(get(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	fee, err := decimal.NewFromString(get("PLATFORM_FEE_PERCENTAGE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENTAGE: %w", err)
	}
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENTAGE must be between 0 and 100")
	}
	cfg.Payments.PlatformFeePercentage = fee

	if cfg.Email.Provider != "resend" && cfg.Email.Provider != "smtp" {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be resend or smtp, got %q", cfg.Email.Provider)
	}

	return cfg, nil
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" sslmode=" + c.SSLMode
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
