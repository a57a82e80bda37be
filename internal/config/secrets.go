package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// EnvAPIKey is the environment variable holding the provider credential
// when no secrets store is configured (or as the fallback when one is).
const EnvAPIKey = "OPENROUTER_API_KEY"

// secretsAPI is the slice of the Secrets Manager client this package
// uses. The indirection keeps tests off the network.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveAPIKey resolves the provider credential: the configured secrets
// store first, then the OPENROUTER_API_KEY environment variable. Neither
// yielding a key is a startup error.
func ResolveAPIKey(ctx context.Context, cfg SecretsConfig, logger *slog.Logger) (string, error) {
	var api secretsAPI
	if cfg.Name != "" {
		client, err := newSecretsClient(ctx, cfg)
		if err != nil {
			logger.Warn("could not reach the secrets store, falling back to environment", "error", err)
		} else {
			api = client
		}
	}
	return resolveAPIKey(ctx, cfg, api, logger)
}

func newSecretsClient(ctx context.Context, cfg SecretsConfig) (*secretsmanager.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

func resolveAPIKey(ctx context.Context, cfg SecretsConfig, api secretsAPI, logger *slog.Logger) (string, error) {
	if cfg.Name != "" && api != nil {
		out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(cfg.Name),
		})
		if err != nil {
			logger.Warn("secrets store lookup failed, falling back to environment",
				"secret", cfg.Name,
				"error", err,
			)
		} else if key := secretKey(out); key != "" {
			return key, nil
		} else {
			logger.Warn("secret does not contain an API key, falling back to environment", "secret", cfg.Name)
		}
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("missing API key: set %s in the environment or .env file, or configure secrets.name", EnvAPIKey)
}

// secretKey extracts the credential from a secret value. A JSON-object
// secret is probed for the OPENROUTER_API_KEY entry; any other payload is
// taken as the key itself.
func secretKey(out *secretsmanager.GetSecretValueOutput) string {
	if out == nil || out.SecretString == nil {
		return ""
	}
	raw := strings.TrimSpace(*out.SecretString)

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		return strings.TrimSpace(fields[EnvAPIKey])
	}
	return raw
}
