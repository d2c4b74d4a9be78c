package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int      `mapstructure:"port"`
	DatabasePath       string   `mapstructure:"database_path"`
	LogLevel           string   `mapstructure:"log_level"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	AdminEmail         string   `mapstructure:"admin_email"`     // standing override: this identity passes every permission check
	AuthJWTSecret      string   `mapstructure:"auth_jwt_secret"` // HS256 secret for access tokens issued at sign-in
	OIDCIssuerURL      string   `mapstructure:"oidc_issuer_url"` // upstream identity provider; empty disables sign-in token verification
	OIDCClientID       string   `mapstructure:"oidc_client_id"`
	DockerHost         string   `mapstructure:"docker_host"`          // engine socket; empty = environment default
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/dockhand/")
	viper.AddConfigPath("$HOME/.dockhand")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 3000)
	viper.SetDefault("database_path", "./dockhand.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("admin_email", "")
	viper.SetDefault("auth_jwt_secret", "")
	viper.SetDefault("oidc_issuer_url", "https://accounts.google.com")
	viper.SetDefault("oidc_client_id", "")
	viper.SetDefault("docker_host", "")
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables
	viper.SetEnvPrefix("DOCKHAND")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
