package main

import (
	"context"
	"errors"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/signals"
	"measurement-gateway/internal/utils"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "webhook-processing"
)

type EnvVars struct {
	verifyToken    string
	dedupTableName string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	verifyToken := os.Getenv("VERIFY_TOKEN")
	if verifyToken == "" {
		return nil, errors.New("VERIFY_TOKEN is not set")
	}

	return &EnvVars{
		verifyToken:    verifyToken,
		dedupTableName: os.Getenv("DEDUP_TABLE_NAME"),
	}, nil
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
	logger := logrus.WithField(COMPONENT, SERVICENAME)

	envVars, err := getEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}
	dbConfig, secretARN, err := database.ConfigFromEnv()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load AWS config")
		panic(err)
	}

	db, err := database.Connect(ctx, dbConfig, secretsmanager.NewFromConfig(cfg), secretARN)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		panic(err)
	}

	var deliveries utils.DeliveryRepository
	if envVars.dedupTableName != "" {
		deliveries = repository.NewDeliveryRepository(logger, dynamodb.NewFromConfig(cfg), envVars.dedupTableName)
	}

	recorder := signals.NewRecorder(logger,
		repository.NewKeywordRepository(logger, db),
		repository.NewSignalRepository(logger, db))

	handler, err := NewHandler(logger, envVars, recorder, deliveries)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
