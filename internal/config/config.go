package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bookingpay/internal/services/commission"
	"bookingpay/internal/services/processor"
	"bookingpay/internal/services/settlement"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetBoolEnv returns a bool environment variable or a default value.
// "yes" and "no" are accepted alongside strconv's forms.
func GetBoolEnv(key string, defaultVal bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "yes":
		return true
	case "no":
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type AppConfig struct {
	Env     string `validate:"oneof=development staging production test"`
	Port    string `validate:"required,numeric"`
	LogDir  string
	Debug   bool
	BaseURL string `validate:"omitempty,url"`
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	User     string `validate:"required"`
	Password string
	Name     string `validate:"required"`
	SSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// DatabaseFromEnv reads only the database settings, for tools that do not
// talk to the processor.
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     GetEnv("DB_HOST", "localhost"),
		Port:     GetIntEnv("DB_PORT", 5432),
		User:     GetEnv("DB_USER", "postgres"),
		Password: GetEnv("DB_PASSWORD", "postgres"),
		Name:     GetEnv("DB_NAME", "bookingpay"),
		SSLMode:  GetEnv("DB_SSLMODE", "disable"),
	}
}

type RedisConfig struct {
	// Enabled switches the payment lock from in-process to Redis.
	Enabled  bool
	Host     string `validate:"required_if=Enabled true"`
	Port     string `validate:"required_if=Enabled true"`
	Password string
	DB       int           `validate:"min=0"`
	LockTTL  time.Duration `validate:"min=1s"`
}

type JWTConfig struct {
	Secret string        `validate:"required,min=16"`
	TTL    time.Duration `validate:"min=1m"`
}

type AdminConfig struct {
	Email        string `validate:"omitempty,email"`
	PasswordHash string
}

// GatewayConfig holds the processor account and settlement options.
type GatewayConfig struct {
	SecretKey          string `validate:"required"`
	PublicKey          string
	PlatformAccountID  string `validate:"required"`
	HotelAccountID     string `validate:"required_if=HotelPayoutEnabled true"`
	HotelPayoutEnabled bool
	CommissionType     commission.Mode `validate:"oneof=exact percentage"`
	CommissionRate     decimal.Decimal
	PaymentMethods     []string `validate:"dive,oneof=card bancontact ideal giropay sepa_debit sofort"`
	Locale             string   `validate:"required"`
	Currency           string   `validate:"required,len=3,alpha"`
	APIURL             string   `validate:"omitempty,url"`
	MaxNetworkRetries  int64    `validate:"min=0,max=10"`
	Timeout            time.Duration
	SuccessURL         string `validate:"required,url"`
	PendingURL         string `validate:"required,url"`
	FailureURL         string `validate:"required,url"`
}

type ReconcileConfig struct {
	// Interval 0 disables the poller.
	Interval  time.Duration `validate:"min=0"`
	MinAge    time.Duration `validate:"min=0"`
	BatchSize int           `validate:"min=1,max=1000"`
}

// Config is the full application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Gateway   GatewayConfig
	Reconcile ReconcileConfig
}

// Load reads the environment (after .env) into a validated Config.
func Load() (*Config, error) {
	LoadEnv()
	return FromEnv()
}

// FromEnv reads the current environment without touching .env.
func FromEnv() (*Config, error) {
	mode, err := commission.ParseMode(GetEnv("STRIPE_COMMISSION_TYPE", ""))
	if err != nil {
		return nil, err
	}
	rate, err := parseRate(GetEnv("STRIPE_COMMISSION_RATE", ""))
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(GetEnv("APP_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		App: AppConfig{
			Env:     GetEnv("ENV", "development"),
			Port:    GetEnv("PORT", "8080"),
			LogDir:  GetEnv("LOG_DIR", ""),
			Debug:   GetBoolEnv("DEBUG", false),
			BaseURL: baseURL,
		},
		Database: DatabaseFromEnv(),
		Redis: RedisConfig{
			Enabled:  GetBoolEnv("REDIS_ENABLED", false),
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			LockTTL:  GetDurationEnv("REDIS_LOCK_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret: GetEnv("JWT_SECRET", ""),
			TTL:    GetDurationEnv("JWT_TTL", 12*time.Hour),
		},
		Admin: AdminConfig{
			Email:        GetEnv("ADMIN_EMAIL", "admin@localhost.localdomain"),
			PasswordHash: GetEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Gateway: GatewayConfig{
			SecretKey:          GetEnv("STRIPE_SECRET_KEY", ""),
			PublicKey:          GetEnv("STRIPE_PUBLIC_KEY", ""),
			PlatformAccountID:  GetEnv("STRIPE_PLATFORM_ACCOUNT_ID", ""),
			HotelAccountID:     GetEnv("STRIPE_HOTEL_ACCOUNT_ID", ""),
			HotelPayoutEnabled: GetBoolEnv("STRIPE_HOTEL_PAYOUT_ENABLED", false),
			CommissionType:     mode,
			CommissionRate:     rate,
			PaymentMethods:     splitList(GetEnv("STRIPE_PAYMENT_METHODS", "card")),
			Locale:             GetEnv("STRIPE_LOCALE", "auto"),
			Currency:           strings.ToUpper(GetEnv("CURRENCY", "EUR")),
			APIURL:             GetEnv("STRIPE_API_URL", ""),
			MaxNetworkRetries:  int64(GetIntEnv("STRIPE_MAX_NETWORK_RETRIES", 2)),
			Timeout:            GetDurationEnv("STRIPE_TIMEOUT", 80*time.Second),
			SuccessURL:         GetEnv("CHECKOUT_SUCCESS_URL", baseURL+"/checkout/success"),
			PendingURL:         GetEnv("CHECKOUT_PENDING_URL", baseURL+"/checkout/pending"),
			FailureURL:         GetEnv("CHECKOUT_FAILURE_URL", baseURL+"/checkout/failure"),
		},
		Reconcile: ReconcileConfig{
			Interval:  GetDurationEnv("RECONCILE_INTERVAL", 5*time.Minute),
			MinAge:    GetDurationEnv("RECONCILE_MIN_AGE", 10*time.Minute),
			BatchSize: GetIntEnv("RECONCILE_BATCH_SIZE", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the commission rule.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Commission().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// The lock has no renewal, so it must outlive the slowest charge.
	if c.Redis.Enabled && c.Redis.LockTTL <= c.Gateway.MaxProcessorCall() {
		return fmt.Errorf("invalid configuration: REDIS_LOCK_TTL %s must exceed the longest processor call %s",
			c.Redis.LockTTL, c.Gateway.MaxProcessorCall())
	}
	return nil
}

// MaxProcessorCall is the longest a single processor call can block,
// retries included.
func (g GatewayConfig) MaxProcessorCall() time.Duration {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = processor.DefaultTimeout
	}
	return timeout * time.Duration(g.MaxNetworkRetries+1)
}

// Commission returns the active commission rule.
func (c *Config) Commission() commission.Config {
	return commission.Config{Mode: c.Gateway.CommissionType, Rate: c.Gateway.CommissionRate}
}

// Settlement returns the snapshot the settlement service runs with.
func (c *Config) Settlement() settlement.Config {
	return settlement.Config{
		Commission:         c.Commission(),
		PlatformAccountID:  c.Gateway.PlatformAccountID,
		HotelAccountID:     c.Gateway.HotelAccountID,
		HotelPayoutEnabled: c.Gateway.HotelPayoutEnabled,
		PaymentMethods:     c.Gateway.PaymentMethods,
		PublicKey:          c.Gateway.PublicKey,
		Locale:             c.Gateway.Locale,
	}
}

// Processor returns the processor adapter options.
func (c *Config) Processor() processor.Config {
	return processor.Config{
		SecretKey:         c.Gateway.SecretKey,
		APIURL:            c.Gateway.APIURL,
		MaxNetworkRetries: c.Gateway.MaxNetworkRetries,
		Timeout:           c.Gateway.Timeout,
		AppName:           "bookingpay",
		AppURL:            c.App.BaseURL,
	}
}

// parseRate falls back to the default rate when s is empty.
func parseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return commission.DefaultRate, nil
	}
	rate, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", commission.ErrInvalidRate, s)
	}
	return rate, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
