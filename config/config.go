package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string // "local" or "prod"
	ServiceName string
	HTTPPort    string
	GRPCPort    string // vide = pas de serveur gRPC

	DBDriver string // "postgres" or "sqlite"
	DBUrl    string

	RedisAddr string // vide = cache mémoire
	NatsUrl   string // vide = events désactivés

	Neo4jURI  string // vide = abonnements en SQL
	Neo4jUser string
	Neo4jPass string

	OtelEndpoint string // vide = pas de tracing

	JWTPublicKeyPath string
	JWTIssuer        string
	LoginURL         string
	MediaRoot        string

	IndexCacheTTL      time.Duration
	PageSize           int
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	CSRFKey            string // 32 octets
	CSRFSecure         bool
	CSRFTrustedOrigins []string
}

func (c Config) IsLocal() bool {
	return c.Env == "local"
}

// Load lit un éventuel .env, puis config.yaml, puis l'environnement (prioritaire).
func Load() (*Config, error) {
	// .env est optionnel : en prod tout vient de l'environnement
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("SERVICE_NAME", "yatube")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50055")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NEO4J_URI", "")
	v.SetDefault("NEO4J_USER", "neo4j")
	v.SetDefault("NEO4J_PASSWORD", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("JWT_PUBLIC_KEY_PATH", "")
	v.SetDefault("JWT_ISSUER", "yatube-identity")
	v.SetDefault("LOGIN_URL", "/auth/login/")
	v.SetDefault("MEDIA_ROOT", "./media")
	v.SetDefault("INDEX_CACHE_TTL", "20s")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("CSRF_KEY", "")
	v.SetDefault("CSRF_SECURE", false)
	v.SetDefault("CSRF_TRUSTED_ORIGINS", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:                strings.TrimSpace(v.GetString("APP_ENV")),
		ServiceName:        v.GetString("SERVICE_NAME"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		GRPCPort:           strings.TrimSpace(v.GetString("GRPC_PORT")),
		DBDriver:           strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBUrl:              strings.TrimSpace(v.GetString("DB_URL")),
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		NatsUrl:            strings.TrimSpace(v.GetString("NATS_URL")),
		Neo4jURI:           strings.TrimSpace(v.GetString("NEO4J_URI")),
		Neo4jUser:          v.GetString("NEO4J_USER"),
		Neo4jPass:          v.GetString("NEO4J_PASSWORD"),
		OtelEndpoint:       strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		JWTPublicKeyPath:   strings.TrimSpace(v.GetString("JWT_PUBLIC_KEY_PATH")),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		LoginURL:           v.GetString("LOGIN_URL"),
		MediaRoot:          v.GetString("MEDIA_ROOT"),
		IndexCacheTTL:      v.GetDuration("INDEX_CACHE_TTL"),
		PageSize:           v.GetInt("PAGE_SIZE"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		CSRFKey:            v.GetString("CSRF_KEY"),
		CSRFSecure:         v.GetBool("CSRF_SECURE"),
		CSRFTrustedOrigins: splitList(v.GetString("CSRF_TRUSTED_ORIGINS")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" && cfg.DBUrl == "" {
		cfg.DBUrl = "yatube.db"
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.DBUrl == "" {
		return errors.New("DB_URL is required with DB_DRIVER=postgres")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.IndexCacheTTL < 0 {
		return fmt.Errorf("INDEX_CACHE_TTL must not be negative")
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return fmt.Errorf("CSRF_KEY must be 32 bytes, got %d", len(c.CSRFKey))
	}

	if !c.IsLocal() {
		if c.DBUrl == "" {
			return errors.New("DB_URL is required outside local env")
		}
		if c.JWTPublicKeyPath == "" {
			return errors.New("JWT_PUBLIC_KEY_PATH is required outside local env")
		}
		if c.CSRFKey == "" {
			return errors.New("CSRF_KEY is required outside local env")
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
