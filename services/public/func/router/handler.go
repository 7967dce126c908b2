package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"measurement-gateway/internal/liftstudy"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

const internalErrorMessage = "WMG - Internal Server Error"

type Handler struct {
	logger      *logrus.Entry
	envVars     *EnvVars
	engine      *liftstudy.Engine
	graphClient utils.GraphAPI
	publisher   utils.Publisher
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, engine *liftstudy.Engine, graphClient utils.GraphAPI, publisher utils.Publisher) (*Handler, error) {
	return &Handler{
		logger:      logger,
		envVars:     envVars,
		engine:      engine,
		graphClient: graphClient,
		publisher:   publisher,
	}, nil
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.logger.WithError(err).Error("Failed to decode request body")
			return utils.ErrorResponse(http.StatusBadRequest, "Bad Request"), nil
		}
		body = decoded
	}

	if resp, dropped := h.runLiftStudy(ctx, body); dropped {
		return resp, nil
	}

	businessNumberID := req.PathParameters["business_phone_number_id"]
	if businessNumberID == "" {
		return utils.ErrorResponse(http.StatusBadRequest, "Missing business_phone_number_id path parameter"), nil
	}

	header := http.Header{}
	for key, value := range req.Headers {
		header.Set(key, value)
	}

	h.logger.Info("Replay request to Cloud API")
	relayed, err := h.graphClient.SendMessage(ctx, businessNumberID, header, body)
	if err != nil {
		h.logger.WithError(err).Error("Failed to relay message")
		return utils.ErrorResponse(http.StatusInternalServerError, internalErrorMessage), nil
	}

	if relayed.StatusCode == http.StatusOK {
		h.enqueue(ctx, businessNumberID, body)
	} else {
		h.logger.WithFields(logrus.Fields{
			"statusCode": relayed.StatusCode,
			"response":   string(relayed.Body),
		}).Error("Cloud API rejected the message")
	}

	return events.APIGatewayProxyResponse{
		StatusCode: relayed.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(relayed.Body),
	}, nil
}

// runLiftStudy returns true with the acknowledgement to send when the
// message must not be relayed.
func (h *Handler) runLiftStudy(ctx context.Context, body []byte) (events.APIGatewayProxyResponse, bool) {
	var msg models.OutboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.WithError(err).Warn("Request body is not a message, skipping lift study")
		return events.APIGatewayProxyResponse{}, false
	}
	if msg.Type != models.MessageTypeTemplate || msg.Template == nil {
		return events.APIGatewayProxyResponse{}, false
	}

	result := h.engine.Evaluate(ctx, msg.To, msg.Template.Name)
	if result.Disposition != liftstudy.Drop {
		return events.APIGatewayProxyResponse{}, false
	}

	ack, err := liftstudy.DropAcknowledgement(msg.To)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build acknowledgement, relaying message")
		return events.APIGatewayProxyResponse{}, false
	}

	h.logger.WithField("studyId", result.StudyID).Info("Message dropped: phone number in control group")
	return utils.JSONResponse(http.StatusOK, ack), true
}

// enqueue hands the sent message to signal processing. Failures are logged,
// the message already went out.
func (h *Handler) enqueue(ctx context.Context, businessNumberID string, body []byte) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		h.logger.WithError(err).Error("Failed to parse sent message for enqueue")
		return
	}
	id, _ := json.Marshal(businessNumberID)
	fields["business_number_id"] = id

	payload, err := json.Marshal(fields)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode sent message for enqueue")
		return
	}

	messageID, err := h.publisher.Publish(ctx, string(payload))
	if err != nil {
		h.logger.WithError(err).Error("Failed to enqueue sent message")
		return
	}
	h.logger.WithField("messageId", messageID).Info("Successfully enqueued sent message")
}
