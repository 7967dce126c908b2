package main

import (
	"context"
	"errors"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/liftstudy"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/utils"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "router"
)

type EnvVars struct {
	queueURL    string
	topicARN    string
	graphAPIURL string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	queueURL := os.Getenv("QUEUE_URL")
	topicARN := os.Getenv("TOPIC_ARN")
	if queueURL == "" && topicARN == "" {
		return nil, errors.New("QUEUE_URL or TOPIC_ARN is not set")
	}

	graphAPIURL := os.Getenv("GRAPH_API_URL")
	if graphAPIURL == "" {
		graphAPIURL = utils.DefaultGraphAPIURL
	}

	return &EnvVars{
		queueURL:    queueURL,
		topicARN:    topicARN,
		graphAPIURL: graphAPIURL,
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

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to load AWS config")
		panic(err)
	}

	var publisher utils.Publisher
	if envVars.queueURL != "" {
		publisher = utils.NewSQSPublisher(sqs.NewFromConfig(cfg), envVars.queueURL)
	} else {
		publisher = utils.NewSNSPublisher(sns.NewFromConfig(cfg), envVars.topicARN)
	}

	// Messages keep flowing without a database, only lift studies are skipped.
	var store liftstudy.Store
	dbConfig, secretARN, err := database.ConfigFromEnv()
	if err == nil {
		db, connErr := database.Connect(ctx, dbConfig, secretsmanager.NewFromConfig(cfg), secretARN)
		if connErr == nil {
			store = repository.NewLiftStudyRepository(logger, db)
		}
		err = connErr
	}
	if err != nil {
		logger.WithError(err).Warn("Lift studies disabled, database is not available")
	}

	engine := liftstudy.NewEngine(logger, store, liftstudy.CryptoRandom{})
	graphClient := utils.NewGraphClient(envVars.graphAPIURL, nil)

	handler, err := NewHandler(logger, envVars, engine, graphClient, publisher)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
