package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	AuthMode    string `mapstructure:"AUTH_MODE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	AIRateLimitPerMinute int           `mapstructure:"AI_RATE_LIMIT_PER_MINUTE"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
	UploadBodyLimit      string        `mapstructure:"UPLOAD_BODY_LIMIT"`

	AIGatewayURL    string        `mapstructure:"AI_GATEWAY_URL"`
	AIGatewayAPIKey string        `mapstructure:"AI_GATEWAY_API_KEY"`
	AIClinicalModel string        `mapstructure:"AI_CLINICAL_MODEL"`
	AIVisionModel   string        `mapstructure:"AI_VISION_MODEL"`
	AITimeout       time.Duration `mapstructure:"AI_TIMEOUT"`

	StorageBucket         string `mapstructure:"STORAGE_BUCKET"`
	StorageRegion         string `mapstructure:"STORAGE_REGION"`
	StorageEndpoint       string `mapstructure:"STORAGE_ENDPOINT"`
	StorageAccessKey      string `mapstructure:"STORAGE_ACCESS_KEY"`
	StorageSecretKey      string `mapstructure:"STORAGE_SECRET_KEY"`
	StorageForcePathStyle bool   `mapstructure:"STORAGE_FORCE_PATH_STYLE"`

	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_JWT_SECRET",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AI_RATE_LIMIT_PER_MINUTE",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_BODY_LIMIT",
	"AI_GATEWAY_URL", "AI_GATEWAY_API_KEY", "AI_CLINICAL_MODEL", "AI_VISION_MODEL", "AI_TIMEOUT",
	"STORAGE_BUCKET", "STORAGE_REGION", "STORAGE_ENDPOINT", "STORAGE_ACCESS_KEY", "STORAGE_SECRET_KEY",
	"STORAGE_FORCE_PATH_STYLE", "MIGRATIONS_DIR",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred, see ResolvedAuthMode
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("AI_RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("REQUEST_TIMEOUT", "180s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_BODY_LIMIT", "15M")
	v.SetDefault("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("AI_CLINICAL_MODEL", "google/gemini-3-flash-preview")
	v.SetDefault("AI_VISION_MODEL", "google/gemini-2.5-flash")
	v.SetDefault("AI_TIMEOUT", "120s")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("MIGRATIONS_DIR", "migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The decoder splits on commas without trimming.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ResolvedAuthMode() == "development" {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: AUTH_MODE=development: bearer tokens are not verified.")
		log.Println("WARNING: Every request runs as the development practitioner.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. Development mode is
// never inferred; it must be requested with AUTH_MODE=development.
//   - AUTH_JWKS_URL set   → "jwks" (asymmetric keys from the identity provider)
//   - otherwise           → "secret" (HS256 with AUTH_JWT_SECRET)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.AuthJWKSURL != "" {
		return "jwks"
	}
	return "secret"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case "development":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
		}
	case "jwks":
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL must be set when AUTH_MODE is \"jwks\"")
		}
	case "secret":
		if len(c.AuthJWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters when AUTH_MODE is \"secret\"")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"jwks\", or \"secret\", got %q", mode)
	}

	if c.IsProduction() && c.AIGatewayAPIKey == "" {
		return fmt.Errorf("AI_GATEWAY_API_KEY is required in production")
	}
	if c.AIGatewayURL == "" {
		return fmt.Errorf("AI_GATEWAY_URL is required")
	}
	if c.RequestTimeout > 0 && c.AITimeout > c.RequestTimeout {
		return fmt.Errorf("AI_TIMEOUT (%s) must not exceed REQUEST_TIMEOUT (%s)", c.AITimeout, c.RequestTimeout)
	}

	if c.StorageEndpoint != "" && c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required when STORAGE_ENDPOINT is set")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
