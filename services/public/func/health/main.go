package main

import (
	"context"
	"database/sql"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/utils"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
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
	SERVICENAME = "health"

	pingTimeout = 3 * time.Second
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type status struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type Handler struct {
	logger *logrus.Entry
	db     Pinger
}

// EventHandler answers 503 when the database is missing or does not respond.
func (h *Handler) EventHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.logger.WithField("requestId", request.RequestContext.RequestID).Info("Processing health check")

	if h.db == nil {
		return utils.JSONResponse(http.StatusServiceUnavailable, status{Status: "degraded", Database: "not configured"}), nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WithError(err).Error("Database ping failed")
		return utils.JSONResponse(http.StatusServiceUnavailable, status{Status: "degraded", Database: "unreachable"}), nil
	}

	return utils.JSONResponse(http.StatusOK, status{Status: "ok", Database: "ok"}), nil
}

func connect(ctx context.Context) (*sql.DB, error) {
	dbConfig, secretARN, err := database.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return database.Connect(ctx, dbConfig, secretsmanager.NewFromConfig(cfg), secretARN)
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

	handler := &Handler{logger: logger}
	db, err := connect(context.Background())
	if err != nil {
		logger.WithError(err).Warn("Database is not configured")
	} else {
		handler.db = db
	}

	lambda.Start(handler.EventHandler)
}
