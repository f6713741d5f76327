package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigDirs are searched for config.yaml and config.<env>.yaml.
	ConfigDirs []string
	// Secrets resolves credentials left empty after file and env loading.
	// Defaults to environment variables backed by the SSM parameter store.
	Secrets SecretSource
}

// Load loads configuration from config files, the environment and the
// parameter store.
func Load() (*Config, error) {
	return LoadWithOptions(context.Background(), LoadOptions{})
}

// LoadWithOptions loads configuration using opts.
func LoadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	dirs := opts.ConfigDirs
	if len(dirs) == 0 {
		dirs = []string{"./configs", "."}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("environment", "APP_ENV"); err != nil {
		return nil, fmt.Errorf("failed to bind APP_ENV: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := v.GetString("environment")
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig() // per-environment file is optional

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	secrets := opts.Secrets
	if secrets == nil {
		region := cfg.Storage.Region
		secrets = NewEnvFirst(func() (SecretSource, error) {
			return NewParameterStore(region)
		})
	}
	if err := resolveSecrets(ctx, &cfg, secrets); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvironmentProduction)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.message_timeout", 10*time.Minute)

	v.SetDefault("storage.type", "dynamodb")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.table", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.mongodb_uri", "")
	v.SetDefault("storage.mongodb_database", "background_check")
	v.SetDefault("storage.postgres_uri", "")

	v.SetDefault("checkr.base_url", "https://api.checkr.com")
	v.SetDefault("checkr.api_key", "")
	v.SetDefault("checkr.package", "")

	v.SetDefault("salesforce.org_id", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.client_secret", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.password", "")
	v.SetDefault("salesforce.token_url", "")
	v.SetDefault("salesforce.api_version", "v49.0")
	v.SetDefault("salesforce.timeout", 30*time.Second)
	v.SetDefault("salesforce.token_cache.enabled", false)
	v.SetDefault("salesforce.token_cache.ttl", 15*time.Minute)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// applyDefaults fills settings derived from the environment profile
func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = EnvironmentProduction
	}

	profile := ProfileFor(cfg.Environment)
	if cfg.Checkr.Package == "" {
		cfg.Checkr.Package = profile.Package
	}
	if cfg.Salesforce.TokenURL == "" {
		cfg.Salesforce.TokenURL = profile.TokenURL
	}
	if cfg.Storage.TableName == "" {
		cfg.Storage.TableName = TableNameFor(cfg.Environment)
	}
	if cfg.Salesforce.Timeout <= 0 {
		cfg.Salesforce.Timeout = 30 * time.Second
	}
}

// resolveSecrets fills credentials that neither the config files nor the
// environment provided. Parameter names match the environment variable names.
func resolveSecrets(ctx context.Context, cfg *Config, source SecretSource) error {
	secrets := []struct {
		name  string
		value *string
	}{
		{"CHECKR_API_KEY", &cfg.Checkr.APIKey},
		{"SALESFORCE_ORG_ID", &cfg.Salesforce.OrgID},
		{"SALESFORCE_PASSWORD", &cfg.Salesforce.Password},
		{"SALESFORCE_CLIENT_SECRET", &cfg.Salesforce.ClientSecret},
	}

	for _, secret := range secrets {
		if *secret.value != "" {
			continue
		}
		value, err := source.GetSecret(ctx, secret.name)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", secret.name, err)
		}
		*secret.value = value
	}

	return nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Checkr.BaseURL == "" {
		return fmt.Errorf("checkr.base_url is required")
	}
	if c.Checkr.APIKey == "" {
		return fmt.Errorf("checkr.api_key is required")
	}
	if c.Salesforce.OrgID == "" {
		return fmt.Errorf("salesforce.org_id is required")
	}
	if c.Salesforce.ClientID == "" {
		return fmt.Errorf("salesforce.client_id is required")
	}
	if c.Salesforce.Username == "" {
		return fmt.Errorf("salesforce.username is required")
	}

	switch c.Storage.Type {
	case "dynamodb":
	case "mongodb":
		if c.Storage.MongoDBURI == "" {
			return fmt.Errorf("storage.mongodb_uri is required for mongodb storage")
		}
	case "postgresql":
		if c.Storage.PostgresURI == "" {
			return fmt.Errorf("storage.postgres_uri is required for postgresql storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Salesforce.TokenCache.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when salesforce.token_cache is enabled")
	}

	return nil
}
