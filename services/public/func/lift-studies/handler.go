package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"measurement-gateway/internal/liftstudy"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/utils"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

var templateNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

type Handler struct {
	logger   *logrus.Entry
	envVars  *EnvVars
	studies  utils.LiftStudyRepository
	s3Client utils.S3API

	now func() time.Time
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, studies utils.LiftStudyRepository, s3Client utils.S3API) (*Handler, error) {
	return &Handler{
		logger:   logger,
		envVars:  envVars,
		studies:  studies,
		s3Client: s3Client,
		now:      time.Now,
	}, nil
}

type createRequest struct {
	Name          string `json:"name"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	SampleSize    *int   `json:"sample_size"`
	TemplateNames string `json:"template_names"`
}

type studyResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	SampleSize       int     `json:"sample_size"`
	TemplateNames    string  `json:"template_names"`
	ControlGroupSize int     `json:"control_group_size"`
	TestGroupSize    int     `json:"test_group_size"`
	MessagesCount    int     `json:"messages_count"`
	AvgMessageCost   float64 `json:"avg_message_cost"`
	Status           string  `json:"status"`
}

func newStudyResponse(s models.LiftStudy) studyResponse {
	return studyResponse{
		ID:               s.ID,
		Name:             s.Name,
		StartDate:        s.StartDate.Format(dateLayout),
		EndDate:          s.EndDate.Format(dateLayout),
		SampleSize:       s.SampleSize,
		TemplateNames:    s.TemplateNames,
		ControlGroupSize: s.ControlGroupSize,
		TestGroupSize:    s.TestGroupSize,
		MessagesCount:    s.MessagesCount,
		AvgMessageCost:   s.AvgMessageCost,
		Status:           s.Status,
	}
}

func badRequest(format string, args ...any) events.APIGatewayProxyResponse {
	return utils.ErrorResponse(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

func internalError() events.APIGatewayProxyResponse {
	return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	studyID := req.PathParameters["id"]

	switch req.HTTPMethod {
	case http.MethodPost:
		return h.create(ctx, req.Body), nil
	case http.MethodGet:
		if studyID != "" {
			return h.results(ctx, studyID, req.QueryStringParameters["conversion_event"]), nil
		}
		return h.list(ctx), nil
	case http.MethodPatch:
		if studyID == "" {
			return badRequest("Missing study id"), nil
		}
		return h.update(ctx, studyID, req.Body), nil
	}
	return utils.ErrorResponse(http.StatusMethodNotAllowed, "Invalid HTTP method."), nil
}

// normalizeTemplateNames trims every name and rejects the list if any name has
// characters other than lowercase letters, digits and underscores.
func normalizeTemplateNames(value string) (string, error) {
	names := strings.Split(value, ",")
	for i, name := range names {
		names[i] = strings.TrimSpace(name)
		if !templateNamePattern.MatchString(names[i]) {
			return "", errors.New("template name must be composed by lowercase letters, numbers, and underscores")
		}
	}
	return strings.Join(names, ","), nil
}

// otherActiveStudy returns the id of a study other than studyID that is active
// today, or "" when there is none.
func (h *Handler) otherActiveStudy(ctx context.Context, studyID string) (string, error) {
	active, err := h.studies.GetActiveStudy(ctx, h.now())
	if errors.Is(err, repository.ErrMultipleActiveStudies) {
		return "multiple", nil
	}
	if err != nil {
		return "", err
	}
	if active == nil || active.ID == studyID {
		return "", nil
	}
	return active.ID, nil
}

func (h *Handler) create(ctx context.Context, body string) events.APIGatewayProxyResponse {
	var in createRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return badRequest("Error while creating lift study: invalid request body")
	}
	if strings.TrimSpace(in.Name) == "" || in.StartDate == "" || in.EndDate == "" || in.SampleSize == nil || in.TemplateNames == "" {
		return badRequest("Error while creating lift study: missing required fields in request body")
	}

	start, err := time.Parse(dateLayout, in.StartDate)
	if err != nil {
		return badRequest("Error while creating lift study: start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, in.EndDate)
	if err != nil {
		return badRequest("Error while creating lift study: end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return badRequest("Error while creating lift study: end_date is before start_date")
	}
	if *in.SampleSize <= 0 {
		return badRequest("Error while creating lift study: sample_size must be positive")
	}
	templateNames, err := normalizeTemplateNames(in.TemplateNames)
	if err != nil {
		return badRequest("Error while creating lift study: %s", err)
	}

	activeID, err := h.otherActiveStudy(ctx, "")
	if err != nil {
		h.logger.WithError(err).Error("Failed to check active study")
		return internalError()
	}
	if activeID != "" {
		return badRequest("Error while creating lift study: there is an active study running")
	}

	study := models.LiftStudy{
		ID:            strings.ReplaceAll(uuid.New().String(), "-", ""),
		Name:          strings.TrimSpace(in.Name),
		StartDate:     start,
		EndDate:       end,
		SampleSize:    *in.SampleSize,
		TemplateNames: templateNames,
		Status:        models.StudyStatusActive,
	}
	if err := h.studies.CreateStudy(ctx, study); err != nil {
		h.logger.WithError(err).Error("Failed to create lift study")
		return internalError()
	}

	h.logger.WithField("studyId", study.ID).Info("Created lift study")
	return utils.JSONResponse(http.StatusOK, map[string]string{"study_id": study.ID})
}

func (h *Handler) list(ctx context.Context) events.APIGatewayProxyResponse {
	studies, err := h.studies.ListStudies(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list lift studies")
		return internalError()
	}

	out := make([]studyResponse, 0, len(studies))
	for _, s := range studies {
		out = append(out, newStudyResponse(s))
	}
	return utils.JSONResponse(http.StatusOK, out)
}

func (h *Handler) results(ctx context.Context, studyID, eventName string) events.APIGatewayProxyResponse {
	if eventName == "" {
		return badRequest("Conversion event name must be specified in the format conversion_event=<your event>")
	}
	logger := h.logger.WithFields(logrus.Fields{"studyId": studyID, "conversionEvent": eventName})

	study, err := h.studies.GetStudy(ctx, studyID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(http.StatusNotFound, fmt.Sprintf("Study %s does not exist.", studyID))
	}
	if err != nil {
		logger.WithError(err).Error("Failed to get lift study")
		return internalError()
	}
	if study.ControlGroupSize <= 0 || study.TestGroupSize <= 0 {
		return badRequest("Error while getting lift study results for study %s: %s", studyID, liftstudy.ErrEmptyGroups)
	}

	obj, err := h.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.envVars.bucketName),
		Key:    aws.String(h.envVars.conversionsKey),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to download conversions from S3")
		return internalError()
	}
	defer obj.Body.Close()

	conversions, err := liftstudy.ReadConversions(obj.Body)
	if err != nil {
		logger.WithError(err).Error("Failed to read conversions")
		return badRequest("Error while reading conversions: %s", err)
	}

	groups, err := h.studies.ListGroups(ctx, studyID)
	if err != nil {
		logger.WithError(err).Error("Failed to list study groups")
		return internalError()
	}

	converted := liftstudy.ConvertedGroups(conversions, *study, eventName, groups)
	stats, err := liftstudy.ComputeStats(*study, converted)
	if err != nil {
		return badRequest("Error while getting lift study results for study %s: %s", studyID, err)
	}

	logger.Info("Computed lift study results")
	return utils.JSONResponse(http.StatusOK, liftstudy.NewResults(*study, stats))
}

func parseCost(raw json.RawMessage) (float64, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, err
	}
	var cost float64
	switch v := value.(type) {
	case float64:
		cost = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, err
		}
		cost = parsed
	default:
		return 0, errors.New("not a number")
	}
	if cost < 0 {
		return 0, errors.New("must not be negative")
	}
	return cost, nil
}

// update validates every field before writing any of them.
func (h *Handler) update(ctx context.Context, studyID, body string) events.APIGatewayProxyResponse {
	var in map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return badRequest("Error while updating lift study: invalid request body")
	}

	study, err := h.studies.GetStudy(ctx, studyID)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(http.StatusNotFound, fmt.Sprintf("Study %s does not exist.", studyID))
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get lift study")
		return internalError()
	}

	updated := map[string]any{}

	var status string
	if raw, ok := in["status"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil || (status != models.StudyStatusActive && status != models.StudyStatusPaused) {
			return badRequest("Status must be either 'active' or 'paused'.")
		}
		if status == models.StudyStatusActive && study.Status != models.StudyStatusActive {
			activeID, err := h.otherActiveStudy(ctx, studyID)
			if err != nil {
				h.logger.WithError(err).Error("Failed to check active study")
				return internalError()
			}
			if activeID != "" {
				return badRequest("There is already an active study running.")
			}
		}
		if status == study.Status {
			status = ""
		}
	}

	var cost *float64
	if raw, ok := in["avg_message_cost"]; ok {
		value, err := parseCost(raw)
		if err != nil {
			return badRequest("avg_message_cost must be a number: %s", err)
		}
		cost = &value
	}

	var templateNames string
	if raw, ok := in["template_names"]; ok {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return badRequest("template_names must be a string")
		}
		if templateNames, err = normalizeTemplateNames(value); err != nil {
			return badRequest("%s", err)
		}
	}

	if status != "" {
		if err := h.studies.UpdateStatus(ctx, studyID, status); err != nil {
			h.logger.WithError(err).Error("Failed to update study status")
			return internalError()
		}
		updated["status"] = status
	}
	if cost != nil {
		if err := h.studies.UpdateAvgMessageCost(ctx, studyID, *cost); err != nil {
			h.logger.WithError(err).Error("Failed to update average message cost")
			return internalError()
		}
		updated["avg_message_cost"] = *cost
	}
	if templateNames != "" {
		if err := h.studies.UpdateTemplateNames(ctx, studyID, templateNames); err != nil {
			h.logger.WithError(err).Error("Failed to update template names")
			return internalError()
		}
		updated["template_names"] = templateNames
	}

	h.logger.WithFields(logrus.Fields{"studyId": studyID, "fields": len(updated)}).Info("Updated lift study")
	return utils.JSONResponse(http.StatusOK, map[string]any{"updated_fields": updated})
}
