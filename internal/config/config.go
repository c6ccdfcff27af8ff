package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "SCRAPBOOK"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "scrapbook.db"
	defaultLogLevel     = "info"
	defaultS3Region     = "us-east-1"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
}

// EnrichmentEnabled reports whether both model providers are configured.
// Without them cards are created without descriptions or stickers.
func (c AppConfig) EnrichmentEnabled() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) != "" && strings.TrimSpace(c.OpenAIAPIKey) != ""
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
	configViper.SetDefault("s3.region", defaultS3Region)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:  configViper.GetString("http.address"),
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),

		S3Bucket:          configViper.GetString("s3.bucket"),
		S3Region:          configViper.GetString("s3.region"),
		S3Endpoint:        configViper.GetString("s3.endpoint"),
		S3AccessKeyID:     configViper.GetString("s3.access_key_id"),
		S3SecretAccessKey: configViper.GetString("s3.secret_access_key"),

		AnthropicAPIKey: configViper.GetString("ai.anthropic_api_key"),
		AnthropicModel:  configViper.GetString("ai.anthropic_model"),
		OpenAIAPIKey:    configViper.GetString("ai.openai_api_key"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.S3Bucket) == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if strings.TrimSpace(c.S3Region) == "" {
		return fmt.Errorf("s3.region is required")
	}
	return nil
}
