package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ConfigFileEnv names an optional YAML file layered under the environment.
	ConfigFileEnv = "PB_GATEWAY_CONFIG"
	EnvPrefix     = "PB_GATEWAY"

	DefaultPocketBaseURL = "http://localhost:8090"
)

func setDefaults(v *viper.Viper) {
	// PocketBase
	v.SetDefault("pocketbase.url", DefaultPocketBaseURL)
	v.SetDefault("pocketbase.admin_email", "admin@example.com")
	v.SetDefault("pocketbase.admin_password", "")
	v.SetDefault("pocketbase.auth_path", "/api/admins/auth-with-password")

	// Gateway client
	v.SetDefault("gateway.auth_attempts", 3)
	v.SetDefault("gateway.auth_retry_delay", time.Second)
	v.SetDefault("gateway.queue_spacing", 100*time.Millisecond)
	v.SetDefault("gateway.health_interval", 60*time.Second)
	v.SetDefault("gateway.request_timeout", 30*time.Second)

	// Ops server
	v.SetDefault("ops.addr", ":9100")

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")

	// Redis status channel, disabled unless an address is set
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "pbgateway:status")
}

func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names shared with the admin API deployment.
	_ = v.BindEnv("pocketbase.url", "POCKETBASE_URL", EnvPrefix+"_POCKETBASE_URL")
	_ = v.BindEnv("pocketbase.admin_email", "POCKETBASE_ADMIN_EMAIL", EnvPrefix+"_POCKETBASE_ADMIN_EMAIL")
	_ = v.BindEnv("pocketbase.admin_password", "POCKETBASE_ADMIN_PASSWORD", EnvPrefix+"_POCKETBASE_ADMIN_PASSWORD")
}
