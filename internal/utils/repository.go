package utils

import (
	"context"
	"encoding/json"
	"measurement-gateway/internal/models"
	"time"
)

// KeywordRepository defines keyword-related database operations
type KeywordRepository interface {
	ListKeywords(ctx context.Context) ([]models.Keyword, error)
	GetKeyword(ctx context.Context, id int64) (*models.Keyword, error)
	CreateKeyword(ctx context.Context, keyword, signal string) (int64, error)
	UpdateKeyword(ctx context.Context, id int64, keyword, signal string) error
	DeleteKeyword(ctx context.Context, id int64) error
}

// SignalRepository defines signal-related database operations
type SignalRepository interface {
	SaveSignals(ctx context.Context, signals []models.Signal) error
	CountSignals(ctx context.Context, from, to *time.Time) ([]models.SignalCount, error)
}

// AudienceRuleRepository defines audience-rule database operations
type AudienceRuleRepository interface {
	ListAudienceRules(ctx context.Context) ([]models.AudienceRule, error)
	CreateAudienceRule(ctx context.Context, name string, include, exclude json.RawMessage, subscriberListID string) (*models.AudienceRule, error)
	DeleteAudienceRules(ctx context.Context) (int64, error)
}

// LiftStudyRepository defines lift-study database operations
type LiftStudyRepository interface {
	GetActiveStudy(ctx context.Context, now time.Time) (*models.LiftStudy, error)
	GetTemplateSet(ctx context.Context, studyID string) ([]string, error)
	GetGroup(ctx context.Context, studyID, phoneNumber string) (models.Group, error)
	GetCapacity(ctx context.Context, studyID string) (models.Capacity, error)
	Assign(ctx context.Context, studyID, phoneNumber string, group models.Group) error
	IncrementMessagesCount(ctx context.Context, studyID string) error

	CreateStudy(ctx context.Context, study models.LiftStudy) error
	ListStudies(ctx context.Context) ([]models.LiftStudy, error)
	GetStudy(ctx context.Context, studyID string) (*models.LiftStudy, error)
	UpdateStatus(ctx context.Context, studyID, status string) error
	UpdateAvgMessageCost(ctx context.Context, studyID string, cost float64) error
	UpdateTemplateNames(ctx context.Context, studyID, templateNames string) error
	ListGroups(ctx context.Context, studyID string) ([]models.PhoneGroup, error)
}
