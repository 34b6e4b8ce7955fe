package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	Index     IndexConfig
	RateLimit RateLimitConfig
	Sentry    SentryConfig
}

type AuthConfig struct {
	SecretKey         string `env:"SECRET_KEY, required"`
	Algorithm         string `env:"ALGORITHM, default=HS256"`
	TokenExpiryMinute int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES, default=60"`
	BcryptCost        int    `env:"BCRYPT_COST, default=10"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenExpiryMinute) * time.Minute
}

type DatabaseConfig struct {
	URL     string        `env:"DATABASE_URL, default=ai_butler.db"`
	MongoDB string        `env:"MONGO_DB,     default=ai_butler"`
	Timeout time.Duration `env:"DB_TIMEOUT,   default=10s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type OpenAIConfig struct {
	APIKey          string        `env:"OPENAI_API_KEY, required"`
	BaseURL         string        `env:"OPENAI_BASE_URL"`
	Model           string        `env:"OPENAI_MODEL,           default=gpt-4o-mini"`
	EmbeddingModel  string        `env:"OPENAI_EMBEDDING_MODEL, default=text-embedding-3-small"`
	Temperature     float32       `env:"OPENAI_TEMPERATURE,     default=0.2"`
	MaxTokens       int           `env:"OPENAI_MAX_TOKENS,      default=200"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT,       default=30s"`
}

type IndexConfig struct {
	Path string `env:"INDEX_PATH"`
	TopK int    `env:"INDEX_TOP_K, default=3"`
}

type RateLimitConfig struct {
	LoginPerMinute int `env:"RATE_LIMIT_LOGIN, default=5"`
	AskPerMinute   int `env:"RATE_LIMIT_ASK,   default=30"`
}

type SentryConfig struct {
	DSN              string  `env:"SENTRY_DSN"`
	TracesSampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE, default=1.0"`
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith builds the configuration from an explicit lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("ALGORITHM must be one of HS256, HS384, HS512, got %q", c.Auth.Algorithm)
	}
	if c.Auth.TokenExpiryMinute <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.OpenAI.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be positive")
	}
	if c.Index.TopK <= 0 {
		return errors.New("INDEX_TOP_K must be positive")
	}
	if c.RateLimit.LoginPerMinute <= 0 || c.RateLimit.AskPerMinute <= 0 {
		return errors.New("rate limits must be positive")
	}
	return nil
}
