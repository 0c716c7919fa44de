package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	Auth struct {
		IssuerURL     string `mapstructure:"issuer_url"`
		ClientID      string `mapstructure:"client_id"`
		DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	Fees struct {
		CreationFee  uint64 `mapstructure:"creation_fee"`
		ExecutionFee uint64 `mapstructure:"execution_fee"`
	} `mapstructure:"fees"`

	Collaborators struct {
		TaskMailboxURL    string `mapstructure:"task_mailbox_url"`
		OperatorRegistryURL string `mapstructure:"operator_registry_url"`
	} `mapstructure:"collaborators"`

	Admin struct {
		Principal string `mapstructure:"principal"`
	} `mapstructure:"admin"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads the configuration from config.yaml (or ./config/config.yaml)
// and the environment, the latter taking precedence via AutomaticEnv.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("fees.creation_fee", 0)
	viper.SetDefault("fees.execution_fee", 0)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Auth.IssuerURL = normalizeIssuerURL(cfg.Auth.IssuerURL)

	return &cfg, nil
}

// normalizeIssuerURL strips a trailing slash so users can paste the issuer
// URL straight from their identity provider's console without worrying
// about double prefixes downstream.
func normalizeIssuerURL(input string) string {
	iss := strings.TrimSpace(input)
	return strings.TrimRight(iss, "/")
}
