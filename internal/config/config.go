package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DatabaseConfig struct {
	// Driver selects the record store: postgres, sqlite or memory.
	Driver  string
	Migrate bool
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type SQLiteConfig struct {
	Path        string
	BusyTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKey       string
	SecretKey       string
	BucketPortraits string
	UseSSL          bool
	Region          string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type AssetsConfig struct {
	LogoPath string
}

type ContentConfig struct {
	Dir string
}

type UploadsConfig struct {
	Dir       string
	MaxBytes  int64
	SweepAge  time.Duration
	SweepCron string
}

type WorkerConfig struct {
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	Logging          LoggingConfig
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Postgres         PostgresConfig
	SQLite           SQLiteConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Provider         ProviderConfig
	Assets           AssetsConfig
	Content          ContentConfig
	Uploads          UploadsConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

var ErrMissingAPIKey = errors.New("provider api key is not configured")

func Load() (*AppConfig, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("GRADPORTRAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.apikey", "GRADPORTRAIT_PROVIDER_APIKEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind provider key: %w", err)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the API process cannot start without.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.maxsizemb", 50)
	v.SetDefault("logging.maxbackups", 5)
	v.SetDefault("logging.maxagedays", 28)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.readtimeout", "30s")
	// generation holds the connection open for the provider round trip
	v.SetDefault("http.writetimeout", "150s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.migrate", true)

	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("sqlite.path", "gradportrait.db")
	v.SetDefault("sqlite.busytimeout", "5s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "portrait:tasks")
	v.SetDefault("redis.group", "portrait-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucketportraits", "gradportrait-portraits")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("provider.baseurl", "https://api.openai.com/v1")
	v.SetDefault("provider.model", "gpt-image-1")
	v.SetDefault("provider.timeout", "120s")

	v.SetDefault("assets.logopath", "assets/logo.png")
	v.SetDefault("content.dir", "generated")

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.maxbytes", 20<<20)
	v.SetDefault("uploads.sweepage", "1h")
	v.SetDefault("uploads.sweepcron", "0 */15 * * * *")

	v.SetDefault("worker.claiminterval", "30s")
}
