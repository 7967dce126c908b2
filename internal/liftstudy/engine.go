// Package liftstudy decides whether an outbound template message takes part in
// the running lift study, and in which group.
package liftstudy

import (
	"context"
	"errors"
	"fmt"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrInvalidInput = errors.New("phone number and template name are required")

// Disposition tells the router what to do with a message.
type Disposition int

const (
	// Passthrough leaves the message alone.
	Passthrough Disposition = iota
	// Drop answers the caller without sending, the phone is in the control group.
	Drop
	// ForwardAndCount sends the message, the phone is in the test group.
	ForwardAndCount
)

func (d Disposition) String() string {
	switch d {
	case Drop:
		return "DROP"
	case ForwardAndCount:
		return "FORWARD_AND_COUNT"
	}
	return "PASSTHROUGH"
}

// Store is the part of the lift study repository the engine needs.
type Store interface {
	GetActiveStudy(ctx context.Context, now time.Time) (*models.LiftStudy, error)
	GetTemplateSet(ctx context.Context, studyID string) ([]string, error)
	GetGroup(ctx context.Context, studyID, phoneNumber string) (models.Group, error)
	GetCapacity(ctx context.Context, studyID string) (models.Capacity, error)
	Assign(ctx context.Context, studyID, phoneNumber string, group models.Group) error
	IncrementMessagesCount(ctx context.Context, studyID string) error
}

// Evaluation is the outcome of one Evaluate call. Err is set when something
// failed along the way; the disposition is still safe to act on.
type Evaluation struct {
	Disposition Disposition
	StudyID     string
	Group       models.Group
	Err         error
}

type Engine struct {
	logger *logrus.Entry
	store  Store
	random RandomSource

	// Now is replaced in tests.
	Now func() time.Time
}

func NewEngine(logger *logrus.Entry, store Store, random RandomSource) *Engine {
	if random == nil {
		random = CryptoRandom{}
	}
	return &Engine{
		logger: logger,
		store:  store,
		random: random,
		Now:    time.Now,
	}
}

// Evaluate never fails: errors are logged and turn into Passthrough, so the
// message still goes out.
func (e *Engine) Evaluate(ctx context.Context, phoneNumber, templateName string) Evaluation {
	if e == nil || e.store == nil {
		return Evaluation{Disposition: Passthrough}
	}

	logger := e.logger.WithFields(logrus.Fields{
		"phoneNumber":  phoneNumber,
		"templateName": templateName,
	})

	result, err := e.evaluate(ctx, phoneNumber, templateName)
	if err != nil {
		logger.WithError(err).WithField("studyId", result.StudyID).Error("Error while running lift study")
		result.Err = err
		if result.Disposition != ForwardAndCount {
			result.Disposition = Passthrough
		}
		return result
	}

	logger.WithFields(logrus.Fields{
		"studyId":     result.StudyID,
		"group":       result.Group,
		"disposition": result.Disposition.String(),
	}).Info("Lift study evaluated")
	return result
}

func (e *Engine) evaluate(ctx context.Context, phoneNumber, templateName string) (Evaluation, error) {
	if phoneNumber == "" || templateName == "" {
		return Evaluation{}, ErrInvalidInput
	}

	study, err := e.store.GetActiveStudy(ctx, e.Now())
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to get active study: %w", err)
	}
	if study == nil {
		return Evaluation{}, nil
	}
	result := Evaluation{StudyID: study.ID}

	templates, err := e.store.GetTemplateSet(ctx, study.ID)
	if err != nil {
		return result, fmt.Errorf("failed to get study templates: %w", err)
	}
	if !contains(templates, templateName) {
		return result, nil
	}

	group, err := e.store.GetGroup(ctx, study.ID, phoneNumber)
	if err != nil {
		return result, fmt.Errorf("failed to get phone group: %w", err)
	}
	if group == models.GroupNone {
		group, err = e.assign(ctx, study.ID, phoneNumber)
		if err != nil {
			return result, err
		}
	}
	result.Group = group

	switch group {
	case models.GroupControl:
		result.Disposition = Drop
	case models.GroupTest:
		result.Disposition = ForwardAndCount
		if err := e.store.IncrementMessagesCount(ctx, study.ID); err != nil {
			return result, fmt.Errorf("failed to increment messages count: %w", err)
		}
	}
	return result, nil
}

// assign picks a group for a phone seen for the first time. It returns
// GroupNone when both groups are full.
func (e *Engine) assign(ctx context.Context, studyID, phoneNumber string) (models.Group, error) {
	capacity, err := e.store.GetCapacity(ctx, studyID)
	if err != nil {
		return models.GroupNone, fmt.Errorf("failed to get groups status: %w", err)
	}

	var group models.Group
	switch {
	case !capacity.ControlFull && !capacity.TestFull:
		b, err := e.random.Byte()
		if err != nil {
			return models.GroupNone, fmt.Errorf("failed to draw random group: %w", err)
		}
		group = models.GroupControl
		if b < 128 {
			group = models.GroupTest
		}
	case !capacity.ControlFull:
		group = models.GroupControl
	case !capacity.TestFull:
		group = models.GroupTest
	default:
		return models.GroupNone, nil
	}

	err = e.store.Assign(ctx, studyID, phoneNumber, group)
	if errors.Is(err, repository.ErrAlreadyAssigned) {
		// Another invocation assigned this phone first.
		winner, err := e.store.GetGroup(ctx, studyID, phoneNumber)
		if err != nil {
			return models.GroupNone, fmt.Errorf("failed to read concurrent assignment: %w", err)
		}
		return winner, nil
	}
	if err != nil {
		return models.GroupNone, fmt.Errorf("failed to assign phone to %s group: %w", group, err)
	}
	return group, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
