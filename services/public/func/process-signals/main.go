package main

import (
	"context"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/signals"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "process-signals"
)

func init() {
	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
}

func main() {
	logger := logrus.WithField(COMPONENT, SERVICENAME)

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

	recorder := signals.NewRecorder(logger,
		repository.NewKeywordRepository(logger, db),
		repository.NewSignalRepository(logger, db))

	handler, err := NewHandler(logger, recorder)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
