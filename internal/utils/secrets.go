package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type dbSecret struct {
	Password string `json:"password"`
}

// GetDatabasePassword reads the password from a secret holding either
// {"password": "..."} as string or the raw password as binary.
func GetDatabasePassword(ctx context.Context, client SecretsManagerAPI, secretARN string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get database secret: %w", err)
	}

	if out.SecretString != nil {
		var secret dbSecret
		if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
			return "", fmt.Errorf("failed to parse database secret: %w", err)
		}
		if secret.Password == "" {
			return "", errors.New("database secret has no password")
		}
		return secret.Password, nil
	}

	if len(out.SecretBinary) == 0 {
		return "", errors.New("database secret is empty")
	}
	return string(out.SecretBinary), nil
}
