package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"

	"github.com/sirupsen/logrus"
)

type keywordRepository struct {
	logger *logrus.Entry
	db     *sql.DB
}

func NewKeywordRepository(logger *logrus.Entry, db *sql.DB) utils.KeywordRepository {
	return &keywordRepository{
		logger: logger,
		db:     db,
	}
}

func (r *keywordRepository) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, keyword, `signal`, created_at, updated_at FROM keywords ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	keywords := []models.Keyword{}
	for rows.Next() {
		var k models.Keyword
		if err := rows.Scan(&k.ID, &k.Keyword, &k.Signal, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func (r *keywordRepository) GetKeyword(ctx context.Context, id int64) (*models.Keyword, error) {
	var k models.Keyword
	err := r.db.QueryRowContext(ctx,
		"SELECT id, keyword, `signal`, created_at, updated_at FROM keywords WHERE id = ?", id).
		Scan(&k.ID, &k.Keyword, &k.Signal, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	return &k, nil
}

func (r *keywordRepository) CreateKeyword(ctx context.Context, keyword, signal string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO keywords (keyword, `signal`) VALUES (?, ?)", keyword, signal)
	if err != nil {
		r.logger.WithError(err).Error("Failed to insert keyword")
		return 0, fmt.Errorf("failed to create keyword: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read keyword id: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"keywordId": id,
		"keyword":   keyword,
		"signal":    signal,
	}).Info("Successfully created keyword")
	return id, nil
}

func (r *keywordRepository) UpdateKeyword(ctx context.Context, id int64, keyword, signal string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE keywords SET keyword = ?, `signal` = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		keyword, signal, id)
	if err != nil {
		r.logger.WithError(err).Error("Failed to update keyword")
		return fmt.Errorf("failed to update keyword: %w", err)
	}
	return nil
}

// DeleteKeyword also removes the signals recorded for the keyword.
func (r *keywordRepository) DeleteKeyword(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM signals WHERE keyword_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete keyword signals: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM keywords WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit keyword delete: %w", err)
	}
	r.logger.WithField("keywordId", id).Info("Deleted keyword")
	return nil
}
