// Package config loads gateway settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"

	pbgateway "github.com/yuanzhaoK/admin-platform-sub000"
)

type Config struct {
	PocketBase PocketBaseConfig `mapstructure:"pocketbase"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Log        LogConfig        `mapstructure:"log"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

type PocketBaseConfig struct {
	URL           string `mapstructure:"url"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	AuthPath      string `mapstructure:"auth_path"`
}

type GatewayConfig struct {
	AuthAttempts   int           `mapstructure:"auth_attempts"`
	AuthRetryDelay time.Duration `mapstructure:"auth_retry_delay"`
	QueueSpacing   time.Duration `mapstructure:"queue_spacing"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Load reads the file named by PB_GATEWAY_CONFIG, if set, then the environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(ConfigFileEnv))
}

// LoadFrom is Load with an explicit config file path; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.PocketBase.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("pocketbase.url must be an http(s) URL, got %q", c.PocketBase.URL))
	}
	if c.PocketBase.AdminEmail == "" {
		errs = append(errs, errors.New("pocketbase.admin_email is required"))
	}
	if c.PocketBase.AdminPassword == "" {
		errs = append(errs, errors.New("pocketbase.admin_password is required"))
	}
	if c.Gateway.AuthAttempts < 1 {
		errs = append(errs, fmt.Errorf("gateway.auth_attempts must be at least 1, got %d", c.Gateway.AuthAttempts))
	}
	if c.Gateway.AuthRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("gateway.auth_retry_delay must be positive, got %s", c.Gateway.AuthRetryDelay))
	}
	if c.Gateway.QueueSpacing <= 0 {
		errs = append(errs, fmt.Errorf("gateway.queue_spacing must be positive, got %s", c.Gateway.QueueSpacing))
	}
	if c.Gateway.HealthInterval <= 0 {
		errs = append(errs, errors.New("gateway.health_interval must be positive"))
	}
	if c.Gateway.RequestTimeout <= 0 {
		errs = append(errs, errors.New("gateway.request_timeout must be positive"))
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		errs = append(errs, errors.New("redis.channel is required when redis.addr is set"))
	}

	return errors.Join(errs...)
}

// ClientConfig maps the loaded settings onto the gateway client.
func (c *Config) ClientConfig() pbgateway.Config {
	return pbgateway.Config{
		URL:            c.PocketBase.URL,
		AuthPath:       c.PocketBase.AuthPath,
		Identity:       c.PocketBase.AdminEmail,
		Password:       c.PocketBase.AdminPassword,
		AuthAttempts:   c.Gateway.AuthAttempts,
		AuthRetryDelay: c.Gateway.AuthRetryDelay,
		QueueSpacing:   c.Gateway.QueueSpacing,
		HealthInterval: c.Gateway.HealthInterval,
		RequestTimeout: c.Gateway.RequestTimeout,
	}
}
