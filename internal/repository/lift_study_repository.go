package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const studyColumns = `id, COALESCE(name, ''), start_date, end_date, COALESCE(sample_size, 0),
	COALESCE(template_names, ''), COALESCE(control_group_size, 0), COALESCE(test_group_size, 0),
	COALESCE(messages_count, 0), COALESCE(avg_message_cost, 0), COALESCE(status, '')`

type liftStudyRepository struct {
	logger *logrus.Entry
	db     *sql.DB
}

func NewLiftStudyRepository(logger *logrus.Entry, db *sql.DB) utils.LiftStudyRepository {
	return &liftStudyRepository{
		logger: logger,
		db:     db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*models.LiftStudy, error) {
	var study models.LiftStudy
	err := row.Scan(
		&study.ID,
		&study.Name,
		&study.StartDate,
		&study.EndDate,
		&study.SampleSize,
		&study.TemplateNames,
		&study.ControlGroupSize,
		&study.TestGroupSize,
		&study.MessagesCount,
		&study.AvgMessageCost,
		&study.Status,
	)
	if err != nil {
		return nil, err
	}
	return &study, nil
}

// GetActiveStudy returns the study running on the date of now, or nil if
// there is none.
func (r *liftStudyRepository) GetActiveStudy(ctx context.Context, now time.Time) (*models.LiftStudy, error) {
	day := now.UTC().Format(dateLayout)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+studyColumns+` FROM lift_studies
		WHERE status = ? AND start_date <= ? AND end_date >= ?`,
		models.StudyStatusActive, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query active study: %w", err)
	}
	defer rows.Close()

	var studies []*models.LiftStudy
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lift study: %w", err)
		}
		studies = append(studies, study)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active study: %w", err)
	}

	switch len(studies) {
	case 0:
		return nil, nil
	case 1:
		return studies[0], nil
	}

	ids := make([]string, 0, len(studies))
	for _, s := range studies {
		ids = append(ids, s.ID)
	}
	r.logger.WithField("studyIds", ids).Warn("Found more than one active lift study")
	return nil, ErrMultipleActiveStudies
}

func (r *liftStudyRepository) GetTemplateSet(ctx context.Context, studyID string) ([]string, error) {
	var templateNames string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(template_names, '') FROM lift_studies WHERE id = ?`, studyID).Scan(&templateNames)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study templates: %w", err)
	}

	return SplitTemplateNames(templateNames), nil
}

// SplitTemplateNames parses the comma separated template_names column.
func SplitTemplateNames(templateNames string) []string {
	var names []string
	for _, name := range strings.Split(templateNames, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// GetGroup returns GroupNone when the phone number has no assignment yet.
func (r *liftStudyRepository) GetGroup(ctx context.Context, studyID, phoneNumber string) (models.Group, error) {
	var group string
	err := r.db.QueryRowContext(ctx,
		`SELECT group_name FROM lift_studies_groups WHERE study_id = ? AND phone_number = ?`,
		studyID, phoneNumber).Scan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupNone, nil
	}
	if err != nil {
		return models.GroupNone, fmt.Errorf("failed to get phone group: %w", err)
	}

	return models.Group(group), nil
}

func (r *liftStudyRepository) GetCapacity(ctx context.Context, studyID string) (models.Capacity, error) {
	var sampleSize, controlSize, testSize int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(sample_size, 0), COALESCE(control_group_size, 0), COALESCE(test_group_size, 0)
		FROM lift_studies WHERE id = ?`, studyID).Scan(&sampleSize, &controlSize, &testSize)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Capacity{}, ErrNotFound
	}
	if err != nil {
		return models.Capacity{}, fmt.Errorf("failed to get groups status: %w", err)
	}

	return models.Capacity{
		ControlFull: controlSize >= sampleSize,
		TestFull:    testSize >= sampleSize,
	}, nil
}

func groupSizeColumn(group models.Group) (string, error) {
	switch group {
	case models.GroupControl:
		return "control_group_size", nil
	case models.GroupTest:
		return "test_group_size", nil
	}
	return "", fmt.Errorf("invalid group %q", group)
}

// Assign stores the group of a phone number and grows that group by one in a
// single transaction. The counter only moves while it is below the sample
// size, so concurrent assignments can never push a group past it.
func (r *liftStudyRepository) Assign(ctx context.Context, studyID, phoneNumber string, group models.Group) error {
	column, err := groupSizeColumn(group)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lift_studies_groups (study_id, phone_number, group_name) VALUES (?, ?, ?)`,
		studyID, phoneNumber, string(group))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyAssigned
		}
		return fmt.Errorf("failed to insert phone group: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE lift_studies SET %[1]s = %[1]s + 1 WHERE id = ? AND %[1]s < sample_size`, column),
		studyID)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrArmFull
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"studyId": studyID,
		"group":   group,
	}).Info("Phone assigned to group")

	return nil
}

func (r *liftStudyRepository) IncrementMessagesCount(ctx context.Context, studyID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE lift_studies SET messages_count = messages_count + 1 WHERE id = ?`, studyID)
	if err != nil {
		return fmt.Errorf("failed to increment messages count: %w", err)
	}
	return nil
}

func (r *liftStudyRepository) CreateStudy(ctx context.Context, study models.LiftStudy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO lift_studies (id, name, start_date, end_date, sample_size, template_names,
			control_group_size, test_group_size, messages_count, avg_message_cost, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		study.ID,
		study.Name,
		study.StartDate.Format(dateLayout),
		study.EndDate.Format(dateLayout),
		study.SampleSize,
		study.TemplateNames,
		study.ControlGroupSize,
		study.TestGroupSize,
		study.MessagesCount,
		study.AvgMessageCost,
		study.Status,
	)
	if err != nil {
		r.logger.WithError(err).Error("Failed to insert lift study")
		return fmt.Errorf("failed to create lift study: %w", err)
	}

	r.logger.WithField("studyId", study.ID).Info("Successfully created lift study")
	return nil
}

func (r *liftStudyRepository) ListStudies(ctx context.Context) ([]models.LiftStudy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studyColumns+` FROM lift_studies ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lift studies: %w", err)
	}
	defer rows.Close()

	studies := []models.LiftStudy{}
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lift study: %w", err)
		}
		studies = append(studies, *study)
	}
	return studies, rows.Err()
}

func (r *liftStudyRepository) GetStudy(ctx context.Context, studyID string) (*models.LiftStudy, error) {
	study, err := scanStudy(r.db.QueryRowContext(ctx,
		`SELECT `+studyColumns+` FROM lift_studies WHERE id = ?`, studyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lift study: %w", err)
	}
	return study, nil
}

func (r *liftStudyRepository) UpdateStatus(ctx context.Context, studyID, status string) error {
	return r.updateField(ctx, studyID, "status", status)
}

func (r *liftStudyRepository) UpdateAvgMessageCost(ctx context.Context, studyID string, cost float64) error {
	return r.updateField(ctx, studyID, "avg_message_cost", cost)
}

func (r *liftStudyRepository) UpdateTemplateNames(ctx context.Context, studyID, templateNames string) error {
	return r.updateField(ctx, studyID, "template_names", templateNames)
}

// updateField is only called with constant column names.
func (r *liftStudyRepository) updateField(ctx context.Context, studyID, column string, value any) error {
	_, err := r.db.ExecContext(ctx, `UPDATE lift_studies SET `+column+` = ? WHERE id = ?`, value, studyID)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to update lift study %s", column)
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	r.logger.WithFields(logrus.Fields{
		"studyId": studyID,
		"field":   column,
	}).Info("Updated lift study")
	return nil
}

func (r *liftStudyRepository) ListGroups(ctx context.Context, studyID string) ([]models.PhoneGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT study_id, phone_number, group_name FROM lift_studies_groups WHERE study_id = ?`, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list study groups: %w", err)
	}
	defer rows.Close()

	var groups []models.PhoneGroup
	for rows.Next() {
		var g models.PhoneGroup
		var name string
		if err := rows.Scan(&g.StudyID, &g.PhoneNumber, &name); err != nil {
			return nil, fmt.Errorf("failed to scan study group: %w", err)
		}
		g.GroupName = models.Group(name)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
