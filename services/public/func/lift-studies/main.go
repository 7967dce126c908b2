package main

import (
	"context"
	"errors"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/repository"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "lift-studies"

	defaultConversionsKey = "events.csv"
)

type EnvVars struct {
	bucketName     string
	conversionsKey string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	bucketName := os.Getenv("BUCKET_NAME")
	if bucketName == "" {
		return nil, errors.New("BUCKET_NAME is not set")
	}

	conversionsKey := os.Getenv("CONVERSIONS_KEY")
	if conversionsKey == "" {
		conversionsKey = defaultConversionsKey
	}

	return &EnvVars{
		bucketName:     bucketName,
		conversionsKey: conversionsKey,
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

	handler, err := NewHandler(logger, envVars, repository.NewLiftStudyRepository(logger, db), s3.NewFromConfig(cfg))
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
