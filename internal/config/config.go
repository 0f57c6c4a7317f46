package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// 空字符串表示标准开局
	StartFEN string `mapstructure:"start_fen"`

	QueueSize    int `mapstructure:"queue_size"`
	ClientBuffer int `mapstructure:"client_buffer"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`

	// 为空时允许所有来源
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

const envPrefix = "CHESS_DUEL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("start_fen", "")
	v.SetDefault("queue_size", 64)
	v.SetDefault("client_buffer", 64)
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("heartbeat_timeout", 45*time.Second)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("metrics_enabled", true)
}

// InitConfig 按 默认值 < 配置文件 < 环境变量 < 命令行参数 的优先级加载配置。
// 配置文件不存在时只使用其余来源。
func InitConfig(configFile string, flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("绑定命令行参数失败: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("json")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				return nil, fmt.Errorf("加载配置失败: %w", err)
			}
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *AppConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("端口无效: %d", c.Port)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size 必须大于 0: %d", c.QueueSize)
	}
	if c.ClientBuffer <= 0 {
		return fmt.Errorf("client_buffer 必须大于 0: %d", c.ClientBuffer)
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= c.HeartbeatInterval {
		return errors.New("heartbeat_timeout 必须大于 heartbeat_interval")
	}

	return nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
