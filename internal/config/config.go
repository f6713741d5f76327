package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Checkr      CheckrConfig     `mapstructure:"checkr"`
	Salesforce  SalesforceConfig `mapstructure:"salesforce"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MessageTimeout replaces WriteTimeout for CRM outbound messages,
	// which are acknowledged only after every notification is handled.
	MessageTimeout time.Duration `mapstructure:"message_timeout"`
}

// StorageConfig holds workflow store configuration
type StorageConfig struct {
	Type        string `mapstructure:"type"`     // "dynamodb", "mongodb", "postgresql"
	Region      string `mapstructure:"region"`   // AWS region for DynamoDB and SSM
	TableName   string `mapstructure:"table"`    // table / collection name
	Endpoint    string `mapstructure:"endpoint"` // custom endpoint for DynamoDB Local
	MongoDBURI  string `mapstructure:"mongodb_uri"`
	MongoDBName string `mapstructure:"mongodb_database"`
	PostgresURI string `mapstructure:"postgres_uri"`
}

// CheckrConfig holds background-check provider settings
type CheckrConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Package string `mapstructure:"package"`
}

// SalesforceConfig holds CRM connected-app settings
type SalesforceConfig struct {
	OrgID        string           `mapstructure:"org_id"`
	ClientID     string           `mapstructure:"client_id"`
	ClientSecret string           `mapstructure:"client_secret"`
	Username     string           `mapstructure:"username"`
	Password     string           `mapstructure:"password"`
	TokenURL     string           `mapstructure:"token_url"`
	APIVersion   string           `mapstructure:"api_version"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	TokenCache   TokenCacheConfig `mapstructure:"token_cache"`
}

// TokenCacheConfig enables reuse of CRM access tokens across calls.
// Disabled by default: every CRM call performs a fresh password grant.
type TokenCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis connection settings for the token cache
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Profile is the set of tenant settings selected by environment name.
type Profile struct {
	Package  string
	TokenURL string
}

const (
	EnvironmentQA         = "qa"
	EnvironmentProduction = "production"
)

var profiles = map[string]Profile{
	EnvironmentQA: {
		Package:  "tasker_standard",
		TokenURL: "https://test.salesforce.com/services/oauth2/token",
	},
	EnvironmentProduction: {
		Package:  "basic_criminal",
		TokenURL: "https://login.salesforce.com/services/oauth2/token",
	},
}

// ProfileFor returns the tenant profile for env. Anything other than the QA
// tenant runs against production.
func ProfileFor(env string) Profile {
	if env == EnvironmentQA {
		return profiles[EnvironmentQA]
	}
	return profiles[EnvironmentProduction]
}

// TableNameFor returns the workflow table name used for env.
func TableNameFor(env string) string {
	return fmt.Sprintf("bim-%s-background-check", env)
}
