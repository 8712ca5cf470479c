// Package sundaesecret loads configuration secrets from AWS Secrets Manager.
package sundaesecret

import (
	"fmt"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/savaki/secrets"
	"github.com/urfave/cli/v2"
)

var SecretOpts struct {
	APIKeySecret string
}

var APIKeySecretFlag = sundaecli.StringFlag("api-key-secret", "Secrets Manager secret holding the publish api keys; empty leaves the endpoint open", &SecretOpts.APIKeySecret)

var SecretFlags = []cli.Flag{
	APIKeySecretFlag,
}

// APIKeys is the layout of the publish api key secret.
type APIKeys struct {
	Keys []string `json:"api_keys"`
}

// LoadSecret decodes the named secret into data.
func LoadSecret(s *session.Session, secretName string, data interface{}) error {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := manager.Decode(secretName, data); err != nil {
		return fmt.Errorf("failed to load secret %v: %w", secretName, err)
	}
	return nil
}

// LoadAPIKeys returns the publish api keys, or nil when --api-key-secret is
// unset.
func LoadAPIKeys(s *session.Session) ([]string, error) {
	if SecretOpts.APIKeySecret == "" {
		return nil, nil
	}
	var keys APIKeys
	if err := LoadSecret(s, SecretOpts.APIKeySecret, &keys); err != nil {
		return nil, err
	}
	if len(keys.Keys) == 0 {
		return nil, fmt.Errorf("secret %v holds no api keys", SecretOpts.APIKeySecret)
	}
	return keys.Keys, nil
}
