package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const notAvailable = "N/A"

var dateLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339}

type Handler struct {
	logger      *logrus.Entry
	envVars     *EnvVars
	signals     utils.SignalRepository
	graphClient utils.GraphAPI
	s3Client    utils.S3API

	now func() time.Time
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, signals utils.SignalRepository, graphClient utils.GraphAPI, s3Client utils.S3API) (*Handler, error) {
	return &Handler{
		logger:      logger,
		envVars:     envVars,
		signals:     signals,
		graphClient: graphClient,
		s3Client:    s3Client,
		now:         time.Now,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD or YYYY/MM/DD", value)
}

// window resolves the reporting period. A missing bound is one month away
// from the given one; with no bounds the period is the last month.
func window(startParam, endParam string, now time.Time) (start, end time.Time, err error) {
	switch {
	case startParam != "" && endParam != "":
		if start, err = parseDate(startParam); err != nil {
			return
		}
		end, err = parseDate(endParam)
	case startParam != "":
		if start, err = parseDate(startParam); err != nil {
			return
		}
		end = start.AddDate(0, 1, 0)
	case endParam != "":
		if end, err = parseDate(endParam); err != nil {
			return
		}
		start = end.AddDate(0, -1, 0)
	default:
		end = now.UTC()
		start = end.AddDate(0, -1, 0)
	}
	if err != nil {
		return
	}
	if !start.Before(end) {
		err = errors.New("invalid date range: end_time must be greater than start_time")
	}
	return
}

func bearerToken(headers map[string]string) string {
	for name, value := range headers {
		if strings.EqualFold(name, "Authorization") {
			return strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
		}
	}
	return ""
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	wabaID := strings.TrimSpace(req.PathParameters["waba_id"])
	if wabaID == "" {
		return utils.JSONResponse(http.StatusBadRequest, utils.MessageBody{
			Message: "Bad Request",
			Error:   "Missing or empty parameter: waba_id",
		}), nil
	}

	start, end, err := window(req.QueryStringParameters["start_time"], req.QueryStringParameters["end_time"], h.now())
	if err != nil {
		return utils.JSONResponse(http.StatusBadRequest, utils.MessageBody{Message: "Bad Request", Error: err.Error()}), nil
	}

	logger := h.logger.WithFields(logrus.Fields{
		"wabaId": wabaID,
		"start":  start.Format(time.RFC3339),
		"end":    end.Format(time.RFC3339),
	})
	logger.Info("Generating campaigns performance report")

	counts, err := h.signals.CountSignals(ctx, &start, &end)
	if err != nil {
		logger.WithError(err).Error("Failed to count signals")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error"), nil
	}

	accessToken := bearerToken(req.Headers)
	conversations, err := h.graphClient.ConversationsByBusinessNumber(ctx, accessToken, wabaID, start, end)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch conversation analytics")
		conversations = map[string]int{}
	}
	numbers, err := h.graphClient.BusinessNumbersByID(ctx, accessToken, wabaID)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch business numbers")
		numbers = map[string]string{}
	}

	report, err := buildReport(counts, conversations, numbers, start, end)
	if err != nil {
		logger.WithError(err).Error("Failed to build report")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error"), nil
	}

	fileName := fmt.Sprintf("wmg_campaigns_performance_%s.csv",
		strings.ReplaceAll(h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-"))
	_, err = h.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.envVars.bucketName),
		Key:         aws.String(fileName),
		Body:        bytes.NewReader(report),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to upload report to S3")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error"), nil
	}
	logger.WithField("key", fileName).Info("Uploaded report to S3")

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":        "text/csv",
			"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, fileName),
		},
		Body: string(report),
	}, nil
}

// buildReport writes one row per business number id with its conversation
// count and one column per signal type.
func buildReport(counts []models.SignalCount, conversations map[string]int, numbers map[string]string, start, end time.Time) ([]byte, error) {
	bySignal := map[string]map[string]int{}
	var ids []string
	signalSet := map[string]bool{}
	for _, c := range counts {
		if _, ok := bySignal[c.BusinessNumberID]; !ok {
			bySignal[c.BusinessNumberID] = map[string]int{}
			ids = append(ids, c.BusinessNumberID)
		}
		bySignal[c.BusinessNumberID][c.Signal] += c.Count
		signalSet[c.Signal] = true
	}

	signalTypes := make([]string, 0, len(signalSet))
	for s := range signalSet {
		signalTypes = append(signalTypes, s)
	}
	sort.Strings(signalTypes)
	sort.Strings(ids)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"Business Number", "From", "To", "Conversations"}, signalTypes...)); err != nil {
		return nil, err
	}

	from, to := start.Format("2006-01-02"), end.Format("2006-01-02")
	for _, id := range ids {
		number, known := numbers[id]
		conversationCount := notAvailable
		label := id
		if known {
			label = number
			conversationCount = strconv.Itoa(conversations[number])
		}

		row := []string{label, from, to, conversationCount}
		for _, signal := range signalTypes {
			row = append(row, strconv.Itoa(bySignal[id][signal]))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
