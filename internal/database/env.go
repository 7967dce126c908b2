package database

import (
	"context"
	"database/sql"
	"errors"
	"measurement-gateway/internal/utils"
	"os"
)

// ConfigFromEnv reads DB_HOST, DB_USER, DB_NAME and DB_SECRET_ARN, plus the
// optional DB_PORT. The password is fetched later from the secret.
func ConfigFromEnv() (Config, string, error) {
	cfg := Config{
		Host: os.Getenv("DB_HOST"),
		User: os.Getenv("DB_USER"),
		Name: os.Getenv("DB_NAME"),
		Port: os.Getenv("DB_PORT"),
	}
	if cfg.Host == "" {
		return cfg, "", errors.New("DB_HOST is not set")
	}
	if cfg.User == "" {
		return cfg, "", errors.New("DB_USER is not set")
	}
	if cfg.Name == "" {
		return cfg, "", errors.New("DB_NAME is not set")
	}

	secretARN := os.Getenv("DB_SECRET_ARN")
	if secretARN == "" {
		return cfg, "", errors.New("DB_SECRET_ARN is not set")
	}
	return cfg, secretARN, nil
}

// Connect resolves the password from Secrets Manager and opens the pool.
func Connect(ctx context.Context, cfg Config, secrets utils.SecretsManagerAPI, secretARN string) (*sql.DB, error) {
	password, err := utils.GetDatabasePassword(ctx, secrets, secretARN)
	if err != nil {
		return nil, err
	}
	cfg.Password = password
	return OpenMySQL(cfg)
}
