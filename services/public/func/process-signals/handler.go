package main

import (
	"context"
	"encoding/json"
	"measurement-gateway/internal/signals"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger   *logrus.Entry
	recorder *signals.Recorder
}

func NewHandler(logger *logrus.Entry, recorder *signals.Recorder) (*Handler, error) {
	return &Handler{
		logger:   logger,
		recorder: recorder,
	}, nil
}

// sentMessage is the router's enqueued copy of a sent message.
type sentMessage struct {
	To               string `json:"to"`
	BusinessNumberID string `json:"business_number_id"`
}

// snsEnvelope wraps the message when the queue is subscribed to a topic.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

func unwrap(body string) string {
	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Type == "Notification" {
		return envelope.Message
	}
	return body
}

// EventHandler records signals for every record of the batch. Records that
// fail to store are reported back so only they are retried.
func (h *Handler) EventHandler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var failures []events.SQSBatchItemFailure

	for _, record := range event.Records {
		logger := h.logger.WithField("messageId", record.MessageId)
		body := unwrap(record.Body)

		var msg sentMessage
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			logger.WithError(err).Error("Failed to parse message, skipping")
			continue
		}
		if msg.BusinessNumberID == "" {
			logger.Warn("Message has no business_number_id, skipping")
			continue
		}

		count, err := h.recorder.Record(ctx, signals.Message{
			BusinessNumberID: msg.BusinessNumberID,
			ConsumerNumber:   msg.To,
			Text:             body,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to record signals")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		logger.WithField("signals", count).Info("Processed message")
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}
