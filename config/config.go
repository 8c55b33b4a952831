package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "canteen_super_secret_2024"

type Config struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`

	DB struct {
		Driver string `yaml:"driver"` // sqlite or postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"db"`

	JWT struct {
		Secret string        `yaml:"secret"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"jwt"`

	Session struct {
		Store        string        `yaml:"store"` // db or redis
		TTL          time.Duration `yaml:"ttl"`
		CookieName   string        `yaml:"cookieName"`
		CookieSecure bool          `yaml:"cookieSecure"`
	} `yaml:"session"`

	RedisURL    string   `yaml:"redisURL"`
	CORSOrigins []string `yaml:"corsOrigins"`

	OTP struct {
		TTL              time.Duration `yaml:"ttl"`
		RateLimitPerHour int           `yaml:"rateLimitPerHour"`
		Expose           bool          `yaml:"expose"`
	} `yaml:"otp"`

	SMS struct {
		Fast2SMSKey string `yaml:"fast2smsKey"`
	} `yaml:"sms"`

	Email struct {
		BrevoKey string `yaml:"brevoKey"`
		From     string `yaml:"from"`
		FromName string `yaml:"fromName"`
	} `yaml:"email"`

	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies []string `yaml:"trustedProxies"`

	// AuthRatePerMinute throttles credential endpoints per client IP; 0 disables.
	AuthRatePerMinute int `yaml:"authRatePerMinute"`

	// AdminPhones get the admin role when their account is created.
	AdminPhones []string `yaml:"adminPhones"`

	SentryDSN string `yaml:"sentryDSN"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func defaults() *Config {
	cfg := &Config{Env: "development", Port: "8080"}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = "canteen.db"
	cfg.JWT.Secret = defaultJWTSecret
	cfg.JWT.TTL = 24 * time.Hour
	cfg.Session.Store = "db"
	cfg.Session.TTL = 24 * time.Hour
	cfg.Session.CookieName = "canteen_sid"
	cfg.CORSOrigins = []string{"http://localhost:3000"}
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.RateLimitPerHour = 5
	cfg.Email.FromName = "Campus Canteen"
	cfg.AuthRatePerMinute = 30
	return cfg
}

// Load reads .env, then an optional YAML file at path, then environment
// overrides. A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment. Values that do not parse are
// reported rather than skipped.
func applyEnv(cfg *Config) error {
	var errs []error
	override := func(env string, apply func(string)) {
		if v := os.Getenv(env); v != "" {
			apply(v)
		}
	}
	duration := func(env string, dst *time.Duration) {
		override(env, func(v string) {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", env, v, err))
				return
			}
			*dst = d
		})
	}
	boolean := func(env string, dst *bool) {
		override(env, func(v string) {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", env, v, err))
				return
			}
			*dst = b
		})
	}
	integer := func(env string, dst *int) {
		override(env, func(v string) {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", env, v, err))
				return
			}
			*dst = n
		})
	}

	override("APP_ENV", func(v string) { cfg.Env = v })
	override("PORT", func(v string) { cfg.Port = v })
	override("DB_DRIVER", func(v string) { cfg.DB.Driver = v })
	override("DB_DSN", func(v string) { cfg.DB.DSN = v })
	override("JWT_SECRET", func(v string) { cfg.JWT.Secret = v })
	duration("JWT_TTL", &cfg.JWT.TTL)
	override("SESSION_STORE", func(v string) { cfg.Session.Store = v })
	duration("SESSION_TTL", &cfg.Session.TTL)
	boolean("COOKIE_SECURE", &cfg.Session.CookieSecure)
	override("REDIS_URL", func(v string) { cfg.RedisURL = v })
	override("CORS_ORIGINS", func(v string) { cfg.CORSOrigins = splitList(v) })
	integer("AUTH_RATE_PER_MINUTE", &cfg.AuthRatePerMinute)
	override("ADMIN_PHONES", func(v string) { cfg.AdminPhones = splitList(v) })
	override("TRUSTED_PROXIES", func(v string) { cfg.TrustedProxies = splitList(v) })
	duration("OTP_TTL", &cfg.OTP.TTL)
	integer("OTP_RATE_LIMIT_PER_HOUR", &cfg.OTP.RateLimitPerHour)
	boolean("OTP_EXPOSE", &cfg.OTP.Expose)
	override("FAST2SMS_API_KEY", func(v string) { cfg.SMS.Fast2SMSKey = v })
	override("BREVO_API_KEY", func(v string) { cfg.Email.BrevoKey = v })
	override("EMAIL_FROM", func(v string) { cfg.Email.From = v })
	override("EMAIL_FROM_NAME", func(v string) { cfg.Email.FromName = v })
	override("SENTRY_DSN", func(v string) { cfg.SentryDSN = v })
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	switch c.Session.Store {
	case "db":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q (want db or redis)", c.Session.Store)
	}
	if c.JWT.TTL <= 0 || c.Session.TTL <= 0 || c.OTP.TTL <= 0 {
		return errors.New("JWT_TTL, SESSION_TTL and OTP_TTL must be positive")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}
