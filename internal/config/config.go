package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harentsoaR/clinic-api/internal/models"
)

const (
	ScopeAll   = "all"
	ScopeOwner = "owner"

	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// DefaultTokenTTL applies when JWT_EXPIRES is unset.
const DefaultTokenTTL = 7 * 24 * time.Hour

type Config struct {
	Env     string
	APIPort string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string

	JWTSecret  string
	JWTExpires time.Duration
	BcryptCost int

	CORSOrigins []string

	LogLevel  string
	LogFormat string

	UploadDir      string
	MaxUploadBytes int64

	// AppointmentListScope is "all" (every authenticated user sees every
	// appointment) or "owner" (users only see what they booked).
	AppointmentListScope string
	// OwnershipBypassRoles may update/delete appointments they do not own.
	OwnershipBypassRoles []string

	AuthRateLimitPerMinute int

	TextbeltAPIKey string

	MetricsEnabled bool
	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string
}

var envKeys = []string{
	"ENV", "API_PORT", "STORE_DRIVER", "MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "JWT_EXPIRES", "BCRYPT_COST", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_FORMAT", "UPLOAD_DIR", "MAX_UPLOAD_BYTES",
	"APPOINTMENT_LIST_SCOPE", "OWNERSHIP_BYPASS_ROLES", "AUTH_RATE_LIMIT_PER_MINUTE",
	"TEXTBELT_API_KEY", "METRICS_ENABLED", "TRACING_ENABLED", "OTLP_ENDPOINT", "SERVICE_NAME",
}

// Load reads configuration from the environment. Call godotenv.Load first if
// a .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverMongo)
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("JWT_EXPIRES", "7d")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("APPOINTMENT_LIST_SCOPE", ScopeAll)
	v.SetDefault("OWNERSHIP_BYPASS_ROLES", "")
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("SERVICE_NAME", "clinic-api")

	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	ttl, err := ParseExpiry(v.GetString("JWT_EXPIRES"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES: %w", err)
	}

	cfg := &Config{
		Env:                    v.GetString("ENV"),
		APIPort:                v.GetString("API_PORT"),
		StoreDriver:            strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:               v.GetString("MONGO_URI"),
		MongoDatabase:          v.GetString("MONGO_DATABASE"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTExpires:             ttl,
		BcryptCost:             v.GetInt("BCRYPT_COST"),
		CORSOrigins:            splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		UploadDir:              v.GetString("UPLOAD_DIR"),
		MaxUploadBytes:         v.GetInt64("MAX_UPLOAD_BYTES"),
		AppointmentListScope:   strings.ToLower(v.GetString("APPOINTMENT_LIST_SCOPE")),
		OwnershipBypassRoles:   splitList(v.GetString("OWNERSHIP_BYPASS_ROLES")),
		AuthRateLimitPerMinute: v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),
		TextbeltAPIKey:         v.GetString("TEXTBELT_API_KEY"),
		MetricsEnabled:         v.GetBool("METRICS_ENABLED"),
		TracingEnabled:         v.GetBool("TRACING_ENABLED"),
		OTLPEndpoint:           v.GetString("OTLP_ENDPOINT"),
		ServiceName:            v.GetString("SERVICE_NAME"),
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to serve traffic with.
func (c *Config) Validate() error {
	var errs []string

	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when STORE_DRIVER=mongo")
		}
	case DriverMemory:
		if c.IsProduction() {
			errs = append(errs, "STORE_DRIVER=memory is not allowed in production")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StoreDriver))
	}

	if c.AppointmentListScope != ScopeAll && c.AppointmentListScope != ScopeOwner {
		errs = append(errs, fmt.Sprintf("APPOINTMENT_LIST_SCOPE must be %q or %q, got %q", ScopeAll, ScopeOwner, c.AppointmentListScope))
	}

	for _, r := range c.OwnershipBypassRoles {
		if !models.Role(r).IsValid() {
			errs = append(errs, fmt.Sprintf("OWNERSHIP_BYPASS_ROLES: unknown role %q", r))
		}
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_BYTES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseExpiry accepts Go durations ("12h"), a day suffix ("7d") or plain
// seconds ("3600"). An empty string yields DefaultTokenTTL.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTokenTTL, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("expiry must be positive, got %q", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", s)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
