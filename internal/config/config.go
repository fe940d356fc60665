package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Schedule ScheduleConfig `mapstructure:"schedule"`

	Weibo       PlatformConfig `mapstructure:"weibo"`
	Xiaohongshu PlatformConfig `mapstructure:"xiaohongshu"`
	Douyin      PlatformConfig `mapstructure:"douyin"`

	Housekeeping HousekeepingConfig `mapstructure:"housekeeping"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	MaxSizeMB         int    `mapstructure:"max_size_mb"`
	MaxBackups        int    `mapstructure:"max_backups"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type ScheduleConfig struct {
	// Time is the default daily fire time (HH:MM, local) seeded into new
	// tasks. Existing task rows keep whatever the operator set.
	Time    string `mapstructure:"time"`
	Enabled bool   `mapstructure:"enabled"`
}

// PlatformConfig carries one platform's crawl inputs: the static cookie
// fallback (last link of the credential chain), the operator-configured
// target list, and the inter-request delay.
type PlatformConfig struct {
	Cookie  string        `mapstructure:"cookie"`
	Targets []string      `mapstructure:"targets"`
	Delay   time.Duration `mapstructure:"delay"`
	BaseURL string        `mapstructure:"base_url"`
}

type HousekeepingConfig struct {
	TaskLogPrune     string `mapstructure:"task_log_prune"`
	TaskLogRetention int    `mapstructure:"task_log_retention_days"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("data.dir", "data")
	v.SetDefault("schedule.time", "23:59")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("weibo.delay", "3s")
	v.SetDefault("xiaohongshu.delay", "2s")
	v.SetDefault("douyin.delay", "2s")
	v.SetDefault("housekeeping.task_log_prune", "@every 1h")
	v.SetDefault("housekeeping.task_log_retention_days", 90)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
