package main

import (
	"context"
	"encoding/json"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/signals"
	"measurement-gateway/internal/utils"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

const deliveryTTL = 7 * 24 * time.Hour

type Handler struct {
	logger     *logrus.Entry
	envVars    *EnvVars
	recorder   *signals.Recorder
	deliveries utils.DeliveryRepository

	now func() time.Time
}

// NewHandler builds the webhook handler. deliveries may be nil, every
// delivery is then processed.
func NewHandler(logger *logrus.Entry, envVars *EnvVars, recorder *signals.Recorder, deliveries utils.DeliveryRepository) (*Handler, error) {
	return &Handler{
		logger:     logger,
		envVars:    envVars,
		recorder:   recorder,
		deliveries: deliveries,
		now:        time.Now,
	}, nil
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case http.MethodGet:
		return h.verify(req), nil
	case http.MethodPost:
		h.process(ctx, req.Body)
		// WhatsApp retries anything but a 200, so failures are only logged.
		return utils.JSONResponse(http.StatusOK, struct{}{}), nil
	default:
		return utils.ErrorResponse(http.StatusMethodNotAllowed, "Method Not Allowed"), nil
	}
}

func (h *Handler) verify(req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	mode := req.QueryStringParameters["hub.mode"]
	token := req.QueryStringParameters["hub.verify_token"]
	if mode != "subscribe" || token != h.envVars.verifyToken {
		h.logger.WithField("mode", mode).Warn("Webhook verification failed")
		return utils.ErrorResponse(http.StatusForbidden, "Forbidden")
	}

	h.logger.Info("Webhook verified")
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       req.QueryStringParameters["hub.challenge"],
	}
}

func (h *Handler) process(ctx context.Context, body string) {
	var input models.WebhookInput
	if err := json.Unmarshal([]byte(body), &input); err != nil {
		h.logger.WithError(err).Error("Failed to parse webhook body")
		return
	}
	if !input.IsMessagesWebhook() {
		h.logger.WithField("object", input.Object).Info("Ignoring webhook without messages")
		return
	}

	for _, entry := range input.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			businessNumberID := change.Value.Metadata.PhoneNumberID
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				h.processMessage(ctx, businessNumberID, msg)
			}
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, businessNumberID string, msg models.WebhookMessage) {
	logger := h.logger.WithFields(logrus.Fields{
		"messageId":        msg.ID,
		"businessNumberId": businessNumberID,
	})

	if h.deliveries != nil {
		now := h.now().UTC()
		fresh, err := h.deliveries.MarkProcessed(ctx, models.WebhookDelivery{
			MessageID:        msg.ID,
			BusinessNumberID: businessNumberID,
			From:             msg.From,
			ProcessedAt:      now.Format(time.RFC3339),
			ExpiresAt:        now.Add(deliveryTTL).Unix(),
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to check webhook delivery, processing anyway")
		} else if !fresh {
			return
		}
	}

	count, err := h.recorder.Record(ctx, signals.Message{
		BusinessNumberID: businessNumberID,
		ConsumerNumber:   msg.From,
		Text:             msg.Text.Body,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to record signals")
		return
	}
	logger.WithField("signals", count).Info("Processed inbound message")
}
