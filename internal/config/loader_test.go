package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecrets struct {
	values map[string]string
	asked  []string
}

func (m *mapSecrets) GetSecret(_ context.Context, name string) (string, error) {
	m.asked = append(m.asked, name)
	value, ok := m.values[name]
	if !ok {
		return "", errors.New("not found")
	}
	return value, nil
}

func allSecrets() *mapSecrets {
	return &mapSecrets{values: map[string]string{
		"CHECKR_API_KEY":           "checkr-key",
		"SALESFORCE_ORG_ID":        "00D5e000000ABCDEAA",
		"SALESFORCE_PASSWORD":      "password+token",
		"SALESFORCE_CLIENT_SECRET": "client-secret",
	}}
}

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

const baseYAML = `
server:
  port: 9090
checkr:
  base_url: https://api.checkr.com
salesforce:
  client_id: ${SALESFORCE_CLIENT_ID}
  username: admin@believeinme.org
`

func TestLoad_QAProfile(t *testing.T) {
	t.Setenv("APP_ENV", "qa")
	t.Setenv("SALESFORCE_CLIENT_ID", "connected-app")
	dir := writeConfigs(t, map[string]string{
		"config.yaml": baseYAML,
		"config.qa.yaml": `
salesforce:
  username: admin@believeinme.org.partial
logging:
  level: debug
`,
	})

	cfg, err := LoadWithOptions(context.Background(), LoadOptions{ConfigDirs: []string{dir}, Secrets: allSecrets()})
	require.NoError(t, err)

	assert.Equal(t, EnvironmentQA, cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "tasker_standard", cfg.Checkr.Package)
	assert.Equal(t, "checkr-key", cfg.Checkr.APIKey)
	assert.Equal(t, "https://test.salesforce.com/services/oauth2/token", cfg.Salesforce.TokenURL)
	assert.Equal(t, "connected-app", cfg.Salesforce.ClientID)
	assert.Equal(t, "admin@believeinme.org.partial", cfg.Salesforce.Username)
	assert.Equal(t, "00D5e000000ABCDEAA", cfg.Salesforce.OrgID)
	assert.Equal(t, "password+token", cfg.Salesforce.Password)
	assert.Equal(t, "client-secret", cfg.Salesforce.ClientSecret)
	assert.Equal(t, 30*time.Second, cfg.Salesforce.Timeout)
	assert.Equal(t, "bim-qa-background-check", cfg.Storage.TableName)
	assert.Equal(t, "dynamodb", cfg.Storage.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ProductionDefaults(t *testing.T) {
	t.Setenv("SALESFORCE_CLIENT_ID", "connected-app")
	t.Setenv("CHECKR_API_KEY", "from-env")
	dir := writeConfigs(t, map[string]string{"config.yaml": baseYAML})
	secrets := allSecrets()

	cfg, err := LoadWithOptions(context.Background(), LoadOptions{ConfigDirs: []string{dir}, Secrets: secrets})
	require.NoError(t, err)

	assert.Equal(t, EnvironmentProduction, cfg.Environment)
	assert.Equal(t, "basic_criminal", cfg.Checkr.Package)
	assert.Equal(t, "https://login.salesforce.com/services/oauth2/token", cfg.Salesforce.TokenURL)
	assert.Equal(t, "bim-production-background-check", cfg.Storage.TableName)
	assert.Equal(t, "from-env", cfg.Checkr.APIKey)
	assert.NotContains(t, secrets.asked, "CHECKR_API_KEY")
	assert.False(t, cfg.Salesforce.TokenCache.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Salesforce.TokenCache.TTL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("SALESFORCE_CLIENT_ID", "connected-app")
	dir := writeConfigs(t, map[string]string{"config.yaml": baseYAML})
	secrets := allSecrets()
	delete(secrets.values, "SALESFORCE_PASSWORD")

	_, err := LoadWithOptions(context.Background(), LoadOptions{ConfigDirs: []string{dir}, Secrets: secrets})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SALESFORCE_PASSWORD")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:    StorageConfig{Type: "dynamodb"},
			Checkr:     CheckrConfig{BaseURL: "https://api.checkr.com", APIKey: "key"},
			Salesforce: SalesforceConfig{OrgID: "org", ClientID: "client", Username: "user"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.Checkr.APIKey = "" }, wantErr: "checkr.api_key"},
		{name: "missing org", mutate: func(c *Config) { c.Salesforce.OrgID = "" }, wantErr: "salesforce.org_id"},
		{name: "mongodb without uri", mutate: func(c *Config) { c.Storage.Type = "mongodb" }, wantErr: "mongodb_uri"},
		{name: "postgresql without uri", mutate: func(c *Config) { c.Storage.Type = "postgresql" }, wantErr: "postgres_uri"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "sqlite" }, wantErr: "unsupported storage type"},
		{name: "cache without redis", mutate: func(c *Config) { c.Salesforce.TokenCache.Enabled = true }, wantErr: "redis.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type fakeSSM struct {
	ssmiface.SSMAPI
	values map[string]string
	calls  int
}

func (f *fakeSSM) GetParameterWithContext(_ aws.Context, in *ssm.GetParameterInput, _ ...request.Option) (*ssm.GetParameterOutput, error) {
	f.calls++
	if !aws.BoolValue(in.WithDecryption) {
		return nil, errors.New("decryption required")
	}
	value, ok := f.values[aws.StringValue(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssm.Parameter{Value: aws.String(value)}}, nil
}

func TestParameterStore_GetSecret(t *testing.T) {
	store := NewParameterStoreWithClient(&fakeSSM{values: map[string]string{
		"CHECKR_API_KEY": "ssm-key",
		"EMPTY":          "",
	}})

	value, err := store.GetSecret(context.Background(), "CHECKR_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "ssm-key", value)

	_, err = store.GetSecret(context.Background(), "MISSING")
	assert.ErrorContains(t, err, "error retrieving parameter MISSING")

	_, err = store.GetSecret(context.Background(), "EMPTY")
	assert.ErrorContains(t, err, "no parameter store value found for EMPTY")
}

func TestEnvFirst(t *testing.T) {
	t.Setenv("SALESFORCE_ORG_ID", "from-env")
	ssmClient := &fakeSSM{values: map[string]string{"CHECKR_API_KEY": "ssm-key"}}
	built := 0
	source := NewEnvFirst(func() (SecretSource, error) {
		built++
		return NewParameterStoreWithClient(ssmClient), nil
	})

	value, err := source.GetSecret(context.Background(), "SALESFORCE_ORG_ID")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
	assert.Equal(t, 0, built)

	for i := 0; i < 2; i++ {
		value, err = source.GetSecret(context.Background(), "CHECKR_API_KEY")
		require.NoError(t, err)
		assert.Equal(t, "ssm-key", value)
	}
	assert.Equal(t, 1, built)
	assert.Equal(t, 2, ssmClient.calls)
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, Profile{Package: "tasker_standard", TokenURL: "https://test.salesforce.com/services/oauth2/token"}, ProfileFor("qa"))
	assert.Equal(t, Profile{Package: "basic_criminal", TokenURL: "https://login.salesforce.com/services/oauth2/token"}, ProfileFor("production"))
	assert.Equal(t, "bim-qa-background-check", TableNameFor("qa"))
}
