package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the migration pipeline
type Config struct {
	VTEX     VTEXConfig     `mapstructure:"vtex"`
	Legacy   LegacyConfig   `mapstructure:"legacy"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Images   ImagesConfig   `mapstructure:"images"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// VTEXConfig holds the target account credentials and API limits
type VTEXConfig struct {
	AccountName          string `mapstructure:"account_name"`
	Environment          string `mapstructure:"environment"`
	AppKey               string `mapstructure:"app_key"`
	AppToken             string `mapstructure:"app_token"`
	Timeout              int    `mapstructure:"timeout"`
	MaxRetries           int    `mapstructure:"max_retries"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
	DefaultWarehouseID   string `mapstructure:"default_warehouse_id"`
}

// LegacyConfig holds the source site crawling configuration
type LegacyConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	SitemapURL           string   `mapstructure:"sitemap_url"`
	ProductURLPattern    string   `mapstructure:"product_url_pattern"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	Proxies              []string `mapstructure:"proxies"`
}

// DatabaseConfig holds the report database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds checkpoint and retry-queue connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// ImagesConfig holds the object store used to re-host product images at a
// stable public location
type ImagesConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// LLMConfig holds the extraction model endpoint. When disabled the
// pipeline falls back to the heuristic extractor.
type LLMConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Endpoint           string `mapstructure:"endpoint"`
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	Timeout            int    `mapstructure:"timeout"`
	MaxRetries         int    `mapstructure:"max_retries"`
	CustomInstructions string `mapstructure:"custom_instructions"`
}

// PipelineConfig holds run-level behavior
type PipelineConfig struct {
	SampleSize            int  `mapstructure:"sample_size"`
	PageLimit             int  `mapstructure:"page_limit"`
	InventoryQuantity     int  `mapstructure:"inventory_quantity"`
	RequireApproval       bool `mapstructure:"require_approval"`
	DryRun                bool `mapstructure:"dry_run"`
	SpecificationsEnabled bool `mapstructure:"specifications_enabled"`
}

// Load loads configuration from config.yaml with environment variable
// overrides (VTEX_APP_KEY overrides vtex.app_key, and so on).
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate fails fast on configuration errors, before any remote call is
// attempted. Remote credentials are not required for a dry run.
func (c *Config) Validate() error {
	if c.Legacy.BaseURL == "" {
		return fmt.Errorf("legacy.base_url is required")
	}
	if c.Pipeline.DryRun {
		return nil
	}
	if c.VTEX.AccountName == "" {
		return fmt.Errorf("vtex.account_name is required")
	}
	if c.VTEX.AppKey == "" || c.VTEX.AppToken == "" {
		return fmt.Errorf("vtex.app_key and vtex.app_token are required")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("vtex.environment", "vtexcommercestable")
	viper.SetDefault("vtex.timeout", 30)
	viper.SetDefault("vtex.max_retries", 5)
	viper.SetDefault("vtex.max_requests_per_second", 5)
	viper.SetDefault("vtex.default_warehouse_id", "1_1")

	viper.SetDefault("legacy.timeout", 30)
	viper.SetDefault("legacy.max_retries", 3)
	viper.SetDefault("legacy.max_requests_per_second", 2)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "migrator")
	viper.SetDefault("database.user", "migrator_user")
	viper.SetDefault("database.password", "migrator_pass")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.consumer_group", "migrator_consumer")

	viper.SetDefault("images.use_ssl", true)
	viper.SetDefault("images.bucket", "catalog-images")
	viper.SetDefault("images.prefix", "images")

	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.timeout", 60)
	viper.SetDefault("llm.max_retries", 5)

	viper.SetDefault("pipeline.sample_size", 0)
	viper.SetDefault("pipeline.page_limit", 0)
	viper.SetDefault("pipeline.inventory_quantity", 100)
	viper.SetDefault("pipeline.require_approval", true)
	viper.SetDefault("pipeline.dry_run", false)
	viper.SetDefault("pipeline.specifications_enabled", false)
}
