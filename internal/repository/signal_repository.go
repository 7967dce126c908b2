package repository

import (
	"context"
	"database/sql"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05"

type signalRepository struct {
	logger *logrus.Entry
	db     *sql.DB
}

func NewSignalRepository(logger *logrus.Entry, db *sql.DB) utils.SignalRepository {
	return &signalRepository{
		logger: logger,
		db:     db,
	}
}

// SaveSignals writes all signals with a single statement.
func (r *signalRepository) SaveSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(signals))
	args := make([]any, 0, len(signals)*3)
	for _, s := range signals {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, s.KeywordID, s.BusinessPhoneNumberID, s.ConsumerPhoneNumber)
	}

	query := "INSERT INTO signals (keyword_id, business_phone_number_id, consumer_phone_number) VALUES " +
		strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithError(err).Error("Failed to insert signals")
		return fmt.Errorf("failed to save signals: %w", err)
	}

	r.logger.Infof("Inserted %d signals", len(signals))
	return nil
}

// CountSignals groups signals by business number and signal name. The window
// is applied only when both bounds are given.
func (r *signalRepository) CountSignals(ctx context.Context, from, to *time.Time) ([]models.SignalCount, error) {
	query := "SELECT s.business_phone_number_id, k.`signal`, COUNT(*) FROM signals s JOIN keywords k ON s.keyword_id = k.id"
	var args []any
	if from != nil && to != nil {
		query += " WHERE s.created_at >= ? AND s.created_at <= ?"
		args = append(args, from.UTC().Format(timestampLayout), to.UTC().Format(timestampLayout))
	}
	query += " GROUP BY s.business_phone_number_id, k.`signal` ORDER BY s.business_phone_number_id, k.`signal`"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}
	defer rows.Close()

	var counts []models.SignalCount
	for rows.Next() {
		var c models.SignalCount
		if err := rows.Scan(&c.BusinessNumberID, &c.Signal, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan signal count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
