package main

import (
	"context"
	"database/sql"
	"fmt"
	"measurement-gateway/internal/database"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/sirupsen/logrus"
)

const physicalResourceID = "wmg-db-schema"

type Handler struct {
	logger  *logrus.Entry
	connect func(ctx context.Context) (*sql.DB, error)
	dialect database.Dialect
}

func NewHandler(logger *logrus.Entry, connect func(ctx context.Context) (*sql.DB, error), dialect database.Dialect) (*Handler, error) {
	return &Handler{
		logger:  logger,
		connect: connect,
		dialect: dialect,
	}, nil
}

// EventHandler creates the schema on stack create and update. Tables are kept
// on delete.
func (h *Handler) EventHandler(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	logger := h.logger.WithFields(logrus.Fields{
		"requestType": event.RequestType,
		"requestId":   event.RequestID,
	})
	logger.Info("Received custom resource event")

	if event.RequestType == cfn.RequestDelete {
		return physicalResourceID, nil, nil
	}

	db, err := h.connect(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		return physicalResourceID, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, h.dialect, logger); err != nil {
		logger.WithError(err).Error("Failed to create schema")
		return physicalResourceID, nil, err
	}

	logger.Info("Database schema is up to date")
	return physicalResourceID, map[string]interface{}{"Dialect": string(h.dialect)}, nil
}
