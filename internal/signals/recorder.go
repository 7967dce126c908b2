// Package signals turns keyword matches in message text into signal rows.
package signals

import (
	"context"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"strings"

	"github.com/sirupsen/logrus"
)

// Match returns the keywords contained in text. Matching is case sensitive.
func Match(keywords []models.Keyword, text string) []models.Keyword {
	var matched []models.Keyword
	for _, k := range keywords {
		if k.Keyword != "" && strings.Contains(text, k.Keyword) {
			matched = append(matched, k)
		}
	}
	return matched
}

type Message struct {
	BusinessNumberID string
	ConsumerNumber   string
	Text             string
}

type Recorder struct {
	logger   *logrus.Entry
	keywords utils.KeywordRepository
	signals  utils.SignalRepository
}

func NewRecorder(logger *logrus.Entry, keywords utils.KeywordRepository, signals utils.SignalRepository) *Recorder {
	return &Recorder{
		logger:   logger,
		keywords: keywords,
		signals:  signals,
	}
}

// Record stores one signal per keyword found in the message and returns how
// many were stored.
func (r *Recorder) Record(ctx context.Context, msg Message) (int, error) {
	keywords, err := r.keywords.ListKeywords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch keywords: %w", err)
	}

	matched := Match(keywords, msg.Text)
	r.logger.WithFields(logrus.Fields{
		"businessNumberId": msg.BusinessNumberID,
		"matches":          len(matched),
	}).Info("Searched keywords in message")
	if len(matched) == 0 {
		return 0, nil
	}

	rows := make([]models.Signal, 0, len(matched))
	for _, k := range matched {
		rows = append(rows, models.Signal{
			KeywordID:             k.ID,
			BusinessPhoneNumberID: msg.BusinessNumberID,
			ConsumerPhoneNumber:   msg.ConsumerNumber,
		})
	}
	if err := r.signals.SaveSignals(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
