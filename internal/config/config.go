package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Env         string `env:"ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	JWTSecret         string        `env:"JWT_SECRET"`
	JoinSessionExpiry time.Duration `env:"JOIN_SESSION_EXPIRY" envDefault:"30m"`

	SentryDSN    string `env:"SENTRY_DSN"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	Firebase  FirebaseConfig
	Reconcile ReconcileConfig
	Redis     RedisConfig

	GitHub OAuthConfig `envPrefix:"GITHUB_"`
	Google OAuthConfig `envPrefix:"GOOGLE_"`

	SMTP SMTPConfig
}

type FirebaseConfig struct {
	ProjectID          string        `env:"FIREBASE_PROJECT_ID"`
	APIKey             string        `env:"FIREBASE_API_KEY"`
	CredentialsJSON    string        `env:"FIREBASE_CREDENTIALS_JSON"`
	FunctionsBaseURL   string        `env:"FIREBASE_FUNCTIONS_URL"`
	IdentityBaseURL    string        `env:"FIREBASE_IDENTITY_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	SecureTokenBaseURL string        `env:"FIREBASE_SECURETOKEN_URL" envDefault:"https://securetoken.googleapis.com/v1"`
	HTTPTimeout        time.Duration `env:"FIREBASE_HTTP_TIMEOUT" envDefault:"15s"`
}

type ReconcileConfig struct {
	MaxAttempts int           `env:"RECONCILE_MAX_ATTEMPTS" envDefault:"10"`
	Interval    time.Duration `env:"RECONCILE_INTERVAL" envDefault:"500ms"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// Enabled reports whether invite emails can be sent.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.Firebase.FunctionsBaseURL == "" && cfg.Firebase.ProjectID != "" {
		cfg.Firebase.FunctionsBaseURL = fmt.Sprintf("https://us-central1-%s.cloudfunctions.net", cfg.Firebase.ProjectID)
	}
	if cfg.Reconcile.MaxAttempts <= 0 {
		return nil, fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be positive, got %d", cfg.Reconcile.MaxAttempts)
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ValidateServer checks the settings only the HTTP server needs. The
// maintenance commands load the same config without them.
func (c *Config) ValidateServer() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Firebase.ProjectID == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}
	if c.Firebase.APIKey == "" {
		missing = append(missing, "FIREBASE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
