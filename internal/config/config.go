package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw source files on disk.
type DataConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	Manifest       string `yaml:"manifest" mapstructure:"manifest"` // empty = embedded default
	EnrichmentFile string `yaml:"enrichment_file" mapstructure:"enrichment_file"`
	ImportDir      string `yaml:"import_dir" mapstructure:"import_dir"`
	ImportDataset  string `yaml:"import_dataset" mapstructure:"import_dataset"`
}

// StoreConfig configures the import history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
}

// PublishConfig configures bulk upserts into the hosted Postgres backend.
type PublishConfig struct {
	DatabaseURL string  `yaml:"database_url" mapstructure:"database_url"`
	Table       string  `yaml:"table" mapstructure:"table"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// FetchConfig configures downloads of remote raw source files.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LoadDotEnv copies variables from .env files into the process environment
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "config: load %s", p)
		}
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIRECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.manifest", "")
	v.SetDefault("data.enrichment_file", "idfpr/idfpr_outscraper_enrichment.json")
	v.SetDefault("data.import_dir", "idfpr")
	v.SetDefault("data.import_dataset", "idfpr")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("publish.database_url", "")
	v.SetDefault("publish.table", "licensed_professionals")
	v.SetDefault("publish.batch_size", 1000)
	v.SetDefault("publish.max_attempts", 8)
	v.SetDefault("publish.rate_per_sec", 4.0)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.user_agent", "directory/1.0")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys a command depends on are set.
// Mode is one of "serve", "publish" or "import"; unknown modes only get the common checks.
func (c *Config) Validate(mode string) error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return eris.New("config: data.dir is required (DIRECTORY_DATA_DIR)")
	}

	switch mode {
	case "serve":
		if c.Server.Port < 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port %d out of range", c.Server.Port)
		}
		return c.validateStore()
	case "import":
		return c.validateStore()
	case "publish":
		if c.Publish.DatabaseURL == "" {
			return eris.New("config: publish.database_url is required (DIRECTORY_PUBLISH_DATABASE_URL)")
		}
		if c.Publish.Table == "" {
			return eris.New("config: publish.table is required")
		}
		if c.Publish.BatchSize <= 0 {
			return eris.Errorf("config: publish.batch_size must be positive, got %d", c.Publish.BatchSize)
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
		return nil
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
