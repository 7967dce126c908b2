package main

import (
	"context"
	"encoding/json"
	"measurement-gateway/internal/models"
	"measurement-gateway/internal/utils"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger      *logrus.Entry
	rules       utils.AudienceRuleRepository
	graphClient utils.GraphAPI
}

func NewHandler(logger *logrus.Entry, rules utils.AudienceRuleRepository, graphClient utils.GraphAPI) (*Handler, error) {
	return &Handler{
		logger:      logger,
		rules:       rules,
		graphClient: graphClient,
	}, nil
}

type ruleRequest struct {
	Name    string          `json:"name"`
	Include json.RawMessage `json:"include"`
	Exclude json.RawMessage `json:"exclude"`
}

type createdResponse struct {
	CreatedRule    *models.AudienceRule `json:"createdRule"`
	SubscriberList json.RawMessage      `json:"subscriberList,omitempty"`
}

type deletedResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.logger.WithField("method", req.HTTPMethod).Info("Received audience rule request")

	switch req.HTTPMethod {
	case http.MethodGet:
		return h.list(ctx), nil
	case http.MethodPost:
		return h.create(ctx, req), nil
	case http.MethodDelete:
		return h.deleteAll(ctx), nil
	}
	return utils.ErrorResponse(http.StatusMethodNotAllowed, "Method Not Allowed"), nil
}

func (h *Handler) list(ctx context.Context) events.APIGatewayProxyResponse {
	rules, err := h.rules.ListAudienceRules(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list audience rules")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	if rules == nil {
		rules = []models.AudienceRule{}
	}
	return utils.JSONResponse(http.StatusOK, map[string]any{"result": rules})
}

func present(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

func (h *Handler) create(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var in ruleRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return utils.ErrorResponse(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(in.Name) == "" {
		return utils.ErrorResponse(http.StatusBadRequest, "Missing required parameters: name")
	}
	if !present(in.Include) && !present(in.Exclude) {
		return utils.ErrorResponse(http.StatusBadRequest, "Missing required parameters: include or exclude")
	}
	if !present(in.Include) {
		in.Include = nil
	}
	if !present(in.Exclude) {
		in.Exclude = nil
	}

	var subscriberList json.RawMessage
	var subscriberListID string
	params := utils.SubscriberListParams{
		AccessToken:      req.QueryStringParameters["su_access_token"],
		BusinessNumberID: req.QueryStringParameters["wacs_id"],
		AdAccountID:      req.QueryStringParameters["ad_account_id"],
		Name:             in.Name,
	}
	if params.AccessToken != "" && params.BusinessNumberID != "" && params.AdAccountID != "" {
		list, err := h.graphClient.CreateSubscriberList(ctx, params)
		if err != nil {
			h.logger.WithError(err).Error("Failed to create subscriber list")
			return utils.ErrorResponse(http.StatusBadGateway, "Failed to create subscriber list")
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(list, &created); err != nil {
			h.logger.WithError(err).Warn("Subscriber list response has no id")
		}
		subscriberList = list
		subscriberListID = created.ID
	}

	rule, err := h.rules.CreateAudienceRule(ctx, in.Name, in.Include, in.Exclude, subscriberListID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create audience rule")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, createdResponse{CreatedRule: rule, SubscriberList: subscriberList})
}

func (h *Handler) deleteAll(ctx context.Context) events.APIGatewayProxyResponse {
	deleted, err := h.rules.DeleteAudienceRules(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete audience rules")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, deletedResponse{Message: "Successfully deleted all the rules", Deleted: deleted})
}
