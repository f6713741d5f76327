package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

// SecretSource resolves a named secret.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// ParameterStore reads decrypted values from the AWS SSM parameter store.
type ParameterStore struct {
	client ssmiface.SSMAPI
}

// NewParameterStore creates a parameter store client for region.
func NewParameterStore(region string) (*ParameterStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &ParameterStore{client: ssm.New(sess)}, nil
}

// NewParameterStoreWithClient wraps an existing SSM client.
func NewParameterStoreWithClient(client ssmiface.SSMAPI) *ParameterStore {
	return &ParameterStore{client: client}
}

// GetSecret returns the decrypted value of the parameter called name.
func (p *ParameterStore) GetSecret(ctx context.Context, name string) (string, error) {
	result, err := p.client.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("error retrieving parameter %s from parameter store: %w", name, err)
	}

	if result.Parameter == nil || aws.StringValue(result.Parameter.Value) == "" {
		return "", fmt.Errorf("no parameter store value found for %s", name)
	}

	return aws.StringValue(result.Parameter.Value), nil
}

// EnvFirst checks the process environment before falling back to another
// source. The fallback is built lazily so that a fully env-configured process
// never needs AWS credentials.
type EnvFirst struct {
	fallback func() (SecretSource, error)
	source   SecretSource
}

// NewEnvFirst returns a SecretSource that consults os.Getenv, then fallback.
func NewEnvFirst(fallback func() (SecretSource, error)) *EnvFirst {
	return &EnvFirst{fallback: fallback}
}

// GetSecret implements SecretSource.
func (e *EnvFirst) GetSecret(ctx context.Context, name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	if e.fallback == nil {
		return "", fmt.Errorf("secret %s not set", name)
	}
	if e.source == nil {
		source, err := e.fallback()
		if err != nil {
			return "", fmt.Errorf("failed to initialize secret source: %w", err)
		}
		e.source = source
	}
	return e.source.GetSecret(ctx, name)
}
