// Package config loads the service settings from the environment and an
// optional .env file using Viper.
package config

import (
	"strconv"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/viper"
)

// Settings holds every value read from the environment
type Settings struct {
	AccessSecret         string `mapstructure:"JWT_SECRET_ACCESS_TOKEN"`
	RefreshSecret        string `mapstructure:"JWT_SECRET_REFRESH_TOKEN"`
	AccessLifetime       string `mapstructure:"JWT_ACCESS_TOKEN_EXPIRED"`
	RefreshLifetime      string `mapstructure:"JWT_REFRESH_TOKEN_EXPIRED"`
	VerificationLifetime string `mapstructure:"JWT_VERIFICATION_TOKEN_EXPIRED"`
	Issuer               string `mapstructure:"JWT_ISSUER"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBDebug     bool   `mapstructure:"DB_DEBUG"`

	// SessionBackend is "sql" or "redis"
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	UploadsRoot   string `mapstructure:"UPLOADS_ROOT"`
	TaskWorkers   int    `mapstructure:"TASK_WORKERS"`
	TaskQueueSize int    `mapstructure:"TASK_QUEUE_SIZE"`

	BcryptCost    int    `mapstructure:"BCRYPT_COST"`
	DefaultRole   string `mapstructure:"DEFAULT_ROLE"`
	HashidUserIDs bool   `mapstructure:"HASHID_USER_IDS"`
}

// Load reads envFile (if present, "" means .env), then the environment.
// Environment variables override the file.
func Load(envFile string) (*Settings, error) {
	if envFile == "" {
		envFile = ".env"
	}

	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing file is fine

	v.AutomaticEnv()

	v.SetDefault("JWT_SECRET_ACCESS_TOKEN", "")
	v.SetDefault("JWT_SECRET_REFRESH_TOKEN", "")
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRED", "1d")
	v.SetDefault("JWT_REFRESH_TOKEN_EXPIRED", "30d")
	v.SetDefault("JWT_VERIFICATION_TOKEN_EXPIRED", "")
	v.SetDefault("JWT_ISSUER", "go-auth-session")
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "file:auth.db?cache=shared")
	v.SetDefault("DB_DEBUG", false)
	v.SetDefault("SESSION_BACKEND", "sql")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("UPLOADS_ROOT", "./public")
	v.SetDefault("TASK_WORKERS", 4)
	v.SetDefault("TASK_QUEUE_SIZE", 256)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("DEFAULT_ROLE", auth.RoleNameUser)
	v.SetDefault("HASHID_USER_IDS", false)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "config: failed to decode settings")
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Settings) validate() error {
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return invalid("BCRYPT_COST must be between 4 and 31")
	}

	switch strings.ToLower(s.SessionBackend) {
	case "sql", "redis":
	default:
		return invalid("SESSION_BACKEND must be sql or redis")
	}

	for key, value := range map[string]string{
		"JWT_ACCESS_TOKEN_EXPIRED":  s.AccessLifetime,
		"JWT_REFRESH_TOKEN_EXPIRED": s.RefreshLifetime,
	} {
		if _, err := ParseLifetime(value); err != nil {
			return invalid(key + " is not a valid lifetime")
		}
	}

	if s.VerificationLifetime != "" {
		if _, err := ParseLifetime(s.VerificationLifetime); err != nil {
			return invalid("JWT_VERIFICATION_TOKEN_EXPIRED is not a valid lifetime")
		}
	}

	return nil
}

// AuthConfig builds the service configuration. Secrets are checked by
// auth.Config.Validate.
func (s *Settings) AuthConfig() (auth.Config, error) {
	cfg := auth.DefaultConfig()
	cfg.AccessSecret = s.AccessSecret
	cfg.RefreshSecret = s.RefreshSecret
	cfg.Issuer = s.Issuer
	cfg.DefaultRole = s.DefaultRole
	cfg.HashidUserIDs = s.HashidUserIDs

	var err error
	if cfg.AccessTTL, err = ParseLifetime(s.AccessLifetime); err != nil {
		return cfg, err
	}
	if cfg.RefreshTTL, err = ParseLifetime(s.RefreshLifetime); err != nil {
		return cfg, err
	}
	if s.VerificationLifetime != "" {
		if cfg.VerificationTTL, err = ParseLifetime(s.VerificationLifetime); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

// IsProduction reports whether APP_ENV is production
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

// ParseLifetime parses a Go duration or a whole number of days with a "d"
// suffix, e.g. "30d"
func ParseLifetime(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, invalid("lifetime is empty")
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, invalid("invalid day lifetime " + value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, invalid("invalid lifetime " + value)
	}
	return d, nil
}

func invalid(msg string) error {
	return goerrors.New("config: "+msg, goerrors.CategoryValidation).
		WithTextCode(auth.TextCodeInvalidConfig)
}
