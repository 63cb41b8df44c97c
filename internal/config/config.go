package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"promo-stop-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Poll        CycleConfig       `mapstructure:"poll"`
	Sweep       CycleConfig       `mapstructure:"sweep"`
	Ozon        MarketplaceConfig `mapstructure:"ozon"`
	Wildberries MarketplaceConfig `mapstructure:"wildberries"`
	Actions     ActionsConfig     `mapstructure:"actions"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CycleConfig governs one periodic cycle (poll or sweep).
type CycleConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Workers         int           `mapstructure:"workers"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// MarketplaceConfig covers one seller API endpoint.
type MarketplaceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageLimit      int           `mapstructure:"page_limit"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ActionsConfig tunes the deferred-action behaviour.
type ActionsConfig struct {
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROMOSTOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "promostop")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("poll.interval", "10m")
	v.SetDefault("poll.startup_delay", "0s")
	v.SetDefault("poll.workers", 4)
	v.SetDefault("poll.advisory_lock_key", int64(0x70726f6d01))
	v.SetDefault("sweep.interval", "10m")
	v.SetDefault("sweep.startup_delay", "0s")
	v.SetDefault("sweep.advisory_lock_key", int64(0x70726f6d02))

	v.SetDefault("ozon.base_url", "https://api-seller.ozon.ru")
	v.SetDefault("ozon.request_timeout", "15s")
	v.SetDefault("ozon.page_limit", 100)
	v.SetDefault("ozon.user_agent", "promostop/1.0")

	v.SetDefault("wildberries.base_url", "https://suppliers-api.wildberries.ru")
	v.SetDefault("wildberries.request_timeout", "15s")
	v.SetDefault("wildberries.page_limit", 1000)
	v.SetDefault("wildberries.user_agent", "promostop/1.0")

	v.SetDefault("actions.grace_period", "1h")
	v.SetDefault("actions.retry_attempts", 3)
	v.SetDefault("actions.retry_backoff", "2s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be greater than zero")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be greater than zero")
	}
	if c.Poll.Workers <= 0 {
		return fmt.Errorf("poll.workers must be greater than zero")
	}
	if c.Actions.GracePeriod <= 0 {
		return fmt.Errorf("actions.grace_period must be greater than zero")
	}
	if c.Actions.RetryAttempts <= 0 {
		return fmt.Errorf("actions.retry_attempts must be greater than zero")
	}
	if c.Ozon.PageLimit <= 0 || c.Wildberries.PageLimit <= 0 {
		return fmt.Errorf("marketplace page_limit must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token 必须配置")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
