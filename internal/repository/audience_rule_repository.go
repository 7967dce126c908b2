package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"time"

	"github.com/sirupsen/logrus"
)

type audienceRuleRepository struct {
	logger *logrus.Entry
	db     *sql.DB
}

func NewAudienceRuleRepository(logger *logrus.Entry, db *sql.DB) utils.AudienceRuleRepository {
	return &audienceRuleRepository{
		logger: logger,
		db:     db,
	}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func (r *audienceRuleRepository) ListAudienceRules(ctx context.Context) ([]models.AudienceRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, include, exclude, subscriber_list_id, creation_time FROM audience_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audience rules: %w", err)
	}
	defer rows.Close()

	rules := []models.AudienceRule{}
	for rows.Next() {
		var rule models.AudienceRule
		var include, exclude, subscriberListID sql.NullString
		if err := rows.Scan(&rule.ID, &rule.Name, &include, &exclude, &subscriberListID, &rule.CreationTime); err != nil {
			return nil, fmt.Errorf("failed to scan audience rule: %w", err)
		}
		if include.Valid {
			rule.Include = json.RawMessage(include.String)
		}
		if exclude.Valid {
			rule.Exclude = json.RawMessage(exclude.String)
		}
		rule.SubscriberListID = subscriberListID.String
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *audienceRuleRepository) CreateAudienceRule(ctx context.Context, name string, include, exclude json.RawMessage, subscriberListID string) (*models.AudienceRule, error) {
	var listID any
	if subscriberListID != "" {
		listID = subscriberListID
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audience_rules (name, include, exclude, subscriber_list_id) VALUES (?, ?, ?, ?)`,
		name, nullJSON(include), nullJSON(exclude), listID)
	if err != nil {
		r.logger.WithError(err).Error("Failed to insert audience rule")
		return nil, fmt.Errorf("failed to create audience rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read audience rule id: %w", err)
	}

	r.logger.WithField("audienceRuleId", id).Info("Successfully created audience rule")
	return &models.AudienceRule{
		ID:               id,
		Name:             name,
		Include:          include,
		Exclude:          exclude,
		SubscriberListID: subscriberListID,
		CreationTime:     time.Now().UTC(),
	}, nil
}

func (r *audienceRuleRepository) DeleteAudienceRules(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audience_rules`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audience rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted rows: %w", err)
	}

	r.logger.Infof("Deleted %d audience rules", n)
	return n, nil
}
