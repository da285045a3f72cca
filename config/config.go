package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"Describly"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// SecretKey signs refresh tokens, OAuth state and verification code digests.
	SecretKey                 string `env:"SECRET_KEY"`
	JWTSecret                 string `env:"JWT_SECRET"`
	JWTAlgorithm              string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes  int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTokenExpireMinutes int    `env:"REFRESH_TOKEN_EXPIRE_MINUTES" envDefault:"10080"`

	VerificationCodeTTL  time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"30m"`
	PasswordResetCodeTTL time.Duration `env:"PASSWORD_RESET_CODE_TTL" envDefault:"90m"`

	FrontendHost       string   `env:"FRONTEND_HOST" envDefault:"http://localhost:3000"`
	APIHost            string   `env:"API_HOST" envDefault:"http://localhost:8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM"`
	EmailWorkers int    `env:"EMAIL_WORKERS" envDefault:"2"`

	MFAIssuer    string `env:"MFA_ISSUER"`
	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.FrontendHost}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var problems []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, errors.New("DATABASE_URL is required"))
	}
	if len(c.SecretKey) < 16 {
		problems = append(problems, errors.New("SECRET_KEY must be at least 16 characters"))
	}
	if len(c.JWTSecret) < 16 {
		problems = append(problems, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.SecretKey != "" && c.SecretKey == c.JWTSecret {
		problems = append(problems, errors.New("SECRET_KEY and JWT_SECRET must differ"))
	}
	if !strings.HasPrefix(strings.ToUpper(c.JWTAlgorithm), "HS") {
		problems = append(problems, fmt.Errorf("JWT_ALGORITHM %q is not an HMAC algorithm", c.JWTAlgorithm))
	}
	if c.AccessTokenExpireMinutes <= 0 {
		problems = append(problems, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.RefreshTokenExpireMinutes <= c.AccessTokenExpireMinutes {
		problems = append(problems, errors.New("REFRESH_TOKEN_EXPIRE_MINUTES must exceed ACCESS_TOKEN_EXPIRE_MINUTES"))
	}
	if c.VerificationCodeTTL <= 0 || c.PasswordResetCodeTTL <= 0 {
		problems = append(problems, errors.New("code TTLs must be positive"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		problems = append(problems, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}
	if c.ResendAPIKey != "" && c.MailFrom == "" {
		problems = append(problems, errors.New("MAIL_FROM is required when RESEND_API_KEY is set"))
	}
	if c.EmailWorkers <= 0 {
		problems = append(problems, errors.New("EMAIL_WORKERS must be positive"))
	}
	return errors.Join(problems...)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireMinutes) * time.Minute
}

func (c Config) GoogleRedirectURL() string {
	return strings.TrimRight(c.APIHost, "/") + "/auth/google/callback"
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
