package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "FOLIO"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "folio.db"
	defaultLogLevel      = "info"
	defaultTokenTTLMin   = 60
	defaultCVFilePath    = "assets/cv.pdf"
	defaultCVFileName    = "cv.pdf"
	defaultRecentLimit   = 5
	defaultQueryTimeoutS = 3
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	AdminUsername string
	AdminPassword string
	TokenTTL      time.Duration
	CVFilePath    string
	CVFileName    string
	RecentLimit   int
	QueryTimeout  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("cv.file_path", defaultCVFilePath)
	configViper.SetDefault("cv.file_name", defaultCVFileName)
	configViper.SetDefault("stats.recent_limit", defaultRecentLimit)
	configViper.SetDefault("stats.query_timeout_seconds", defaultQueryTimeoutS)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		AdminUsername: configViper.GetString("auth.admin_username"),
		AdminPassword: configViper.GetString("auth.admin_password"),
		TokenTTL:      time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		CVFilePath:    configViper.GetString("cv.file_path"),
		CVFileName:    configViper.GetString("cv.file_name"),
		RecentLimit:   configViper.GetInt("stats.recent_limit"),
		QueryTimeout:  time.Duration(configViper.GetInt("stats.query_timeout_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AdminUsername) == "" {
		return fmt.Errorf("auth.admin_username is required")
	}
	if strings.TrimSpace(c.AdminPassword) == "" {
		return fmt.Errorf("auth.admin_password is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	return nil
}
