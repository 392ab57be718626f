package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const parameterTimeout = 5 * time.Second

// ParameterStore reads secrets from AWS SSM Parameter Store.
type ParameterStore struct {
	client *ssm.Client
}

// NewParameterStore loads the default AWS config (env, shared config, IMDS).
func NewParameterStore(ctx context.Context) (*ParameterStore, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, parameterTimeout)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &ParameterStore{client: ssm.NewFromConfig(cfg)}, nil
}

// Get returns the (decrypted) value of a parameter.
func (p *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, parameterTimeout)
	defer cancel()

	decrypt := true
	input := &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	}

	result, err := p.client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *result.Parameter.Value, nil
}
