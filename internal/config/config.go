package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"APP_ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int    `mapstructure:"DB_MAX_CONNECTIONS"`

	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTTL        time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	RefreshTTL       time.Duration `mapstructure:"JWT_REFRESH_TTL"`

	CORSOrigin      string        `mapstructure:"CORS_ORIGIN"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	AuthRateMax     int           `mapstructure:"AUTH_RATE_MAX"`

	MediaDir       string `mapstructure:"MEDIA_DIR"`
	UploadMaxBytes int    `mapstructure:"UPLOAD_MAX_BYTES"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	EmailHost     string `mapstructure:"EMAIL_HOST"`
	EmailPort     int    `mapstructure:"EMAIL_PORT"`
	EmailUser     string `mapstructure:"EMAIL_USER"`
	EmailPassword string `mapstructure:"EMAIL_PASSWORD"`
	EmailFrom     string `mapstructure:"EMAIL_FROM"`
	BaseURL       string `mapstructure:"APP_BASE_URL"`

	SeedOnStart bool `mapstructure:"SEED_ON_START"`
}

var defaults = map[string]any{
	"APP_ENV":            "development",
	"PORT":               "8080",
	"DATABASE_URL":       "storefront.db", // sqlite file in project root
	"DB_MAX_CONNECTIONS": 10,
	"JWT_SECRET":         "dev-access-secret-change-me",
	"JWT_REFRESH_SECRET": "dev-refresh-secret-change-me",
	"JWT_ACCESS_TTL":     "15m",
	"JWT_REFRESH_TTL":    "168h",
	"CORS_ORIGIN":        "http://localhost:3000",
	"RATE_LIMIT_WINDOW":  "15m",
	"RATE_LIMIT_MAX":     300,
	"AUTH_RATE_MAX":      10,
	"MEDIA_DIR":          "./media",
	"UPLOAD_MAX_BYTES":   5 << 20,
	"LOG_LEVEL":          "info",
	"LOG_FILE":           "",
	"REDIS_ADDR":         "",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"CACHE_TTL":          "5m",
	"KAFKA_BROKERS":      "",
	"KAFKA_TOPIC":        "storefront.events",
	"EMAIL_HOST":         "",
	"EMAIL_PORT":         587,
	"EMAIL_USER":         "",
	"EMAIL_PASSWORD":     "",
	"EMAIL_FROM":         "no-reply@storefront.local",
	"APP_BASE_URL":       "http://localhost:3000",
	"SEED_ON_START":      true,
}

// Load reads defaults, then the optional file named by CONFIG_FILE (or ./.env),
// then the process environment.
func Load() (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	file := v.GetString("CONFIG_FILE")
	if file == "" {
		file = ".env"
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	log.Printf("[config] APP_ENV=%s PORT=%s DATABASE_URL=%s MEDIA_DIR=%s LOG_FILE=%s",
		cfg.Env, cfg.Port, redactDSN(cfg.DatabaseURL), cfg.MediaDir, cfg.LogFile)
	return cfg, nil
}

// Default returns the built-in defaults without touching files or the environment.
func Default() Config {
	return Config{
		Env:              "development",
		Port:             "8080",
		DatabaseURL:      ":memory:",
		DBMaxConns:       10,
		JWTSecret:        "dev-access-secret-change-me",
		JWTRefreshSecret: "dev-refresh-secret-change-me",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		CORSOrigin:       "http://localhost:3000",
		RateLimitWindow:  15 * time.Minute,
		RateLimitMax:     300,
		AuthRateMax:      10,
		MediaDir:         "./media",
		UploadMaxBytes:   5 << 20,
		LogLevel:         "info",
		CacheTTL:         5 * time.Minute,
		KafkaTopic:       "storefront.events",
		EmailPort:        587,
		EmailFrom:        "no-reply@storefront.local",
		BaseURL:          "http://localhost:3000",
	}
}

func (c Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

func (c Config) validate() error {
	if c.IsProduction() {
		if strings.HasPrefix(c.JWTSecret, "dev-") || strings.HasPrefix(c.JWTRefreshSecret, "dev-") {
			return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must be set in production")
		}
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}

func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme > 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}
