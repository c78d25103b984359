package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phoneproof/phone_proof/internal/verify"
)

const (
	defaultAppName        = "PhoneProof"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultAccessTokenTTL = 15 * time.Minute

	// Verify policy defaults; ranges follow the provider's limits.
	defaultVerifyBrand    = "PhoneProof"
	defaultVerifySender   = "PHONEPROOF"
	defaultVerifyWorkflow = 6 // single SMS
	defaultCodeLength     = 6
	defaultPinExpiry      = 300 // seconds
	defaultNextEventWait  = 60  // seconds
)

// Config captures application runtime configuration loaded from environment
// variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	VonageAPIKey    string
	VonageAPISecret string
	VerifyPolicy    verify.Policy

	JWTSecret      string
	AccessTokenTTL time.Duration

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration from the environment. DATABASE_URL, REDIS_URL and
// Vonage credentials are optional in development: absent backends fall back
// to in-memory stores and the static provider.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		VonageAPIKey:    os.Getenv("VONAGE_API_KEY"),
		VonageAPISecret: os.Getenv("VONAGE_API_SECRET"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  defaultAccessTokenTTL,
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
	}

	policy := verify.Policy{
		Brand:         getEnv("VERIFY_BRAND", defaultVerifyBrand),
		SenderID:      getEnv("VERIFY_SENDER_ID", defaultVerifySender),
		Language:      os.Getenv("VERIFY_LANGUAGE"),
		Workflow:      defaultVerifyWorkflow,
		CodeLength:    defaultCodeLength,
		PinExpiry:     defaultPinExpiry,
		NextEventWait: defaultNextEventWait,
	}

	var err error
	if policy.Workflow, err = getIntEnv("VERIFY_WORKFLOW", policy.Workflow); err != nil {
		return Config{}, err
	}
	if policy.CodeLength, err = getIntEnv("VERIFY_CODE_LENGTH", policy.CodeLength); err != nil {
		return Config{}, err
	}
	if policy.PinExpiry, err = getIntEnv("VERIFY_PIN_EXPIRY", policy.PinExpiry); err != nil {
		return Config{}, err
	}
	if policy.NextEventWait, err = getIntEnv("VERIFY_NEXT_EVENT_WAIT", policy.NextEventWait); err != nil {
		return Config{}, err
	}
	if err := validatePolicy(policy); err != nil {
		return Config{}, err
	}
	cfg.VerifyPolicy = policy

	if cfg.AccessTokenTTL, err = getDurationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDurationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDurationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.VonageAPIKey == "" || cfg.VonageAPISecret == "" {
			return Config{}, fmt.Errorf("VONAGE_API_KEY and VONAGE_API_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
	}

	return cfg, nil
}

// IsDev reports whether the app runs with development fallbacks.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func validatePolicy(p verify.Policy) error {
	if p.Workflow < 1 || p.Workflow > 7 {
		return fmt.Errorf("VERIFY_WORKFLOW must be between 1 and 7, got %d", p.Workflow)
	}
	if p.CodeLength != 4 && p.CodeLength != 6 {
		return fmt.Errorf("VERIFY_CODE_LENGTH must be 4 or 6, got %d", p.CodeLength)
	}
	if p.PinExpiry < 60 || p.PinExpiry > 3600 {
		return fmt.Errorf("VERIFY_PIN_EXPIRY must be between 60 and 3600 seconds, got %d", p.PinExpiry)
	}
	if p.NextEventWait < 60 || p.NextEventWait > 900 {
		return fmt.Errorf("VERIFY_NEXT_EVENT_WAIT must be between 60 and 900 seconds, got %d", p.NextEventWait)
	}
	if p.Brand == "" {
		return fmt.Errorf("VERIFY_BRAND must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
