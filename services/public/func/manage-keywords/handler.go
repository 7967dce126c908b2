package main

import (
	"context"
	"encoding/json"
	"errors"
	"measurement-gateway/internal/database"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/utils"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger   *logrus.Entry
	keywords utils.KeywordRepository
}

func NewHandler(logger *logrus.Entry, keywords utils.KeywordRepository) (*Handler, error) {
	return &Handler{
		logger:   logger,
		keywords: keywords,
	}, nil
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
	Signal  string `json:"signal"`
}

type keywordResponse struct {
	ID      int64  `json:"id"`
	Keyword string `json:"keyword"`
	Signal  string `json:"signal"`
}

func (h *Handler) EventHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var id int64
	if raw, ok := req.PathParameters["id"]; ok && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return utils.ErrorResponse(http.StatusBadRequest, "Invalid keyword id"), nil
		}
		id = parsed
	}

	switch req.HTTPMethod {
	case http.MethodGet:
		if id != 0 {
			return h.get(ctx, id), nil
		}
		return h.list(ctx), nil
	case http.MethodPost:
		return h.create(ctx, req.Body), nil
	case http.MethodPut:
		if id == 0 {
			return utils.ErrorResponse(http.StatusBadRequest, "Missing keyword id"), nil
		}
		return h.update(ctx, id, req.Body), nil
	case http.MethodDelete:
		if id == 0 {
			return utils.ErrorResponse(http.StatusBadRequest, "Missing keyword id"), nil
		}
		return h.delete(ctx, id), nil
	}
	return utils.ErrorResponse(http.StatusMethodNotAllowed, "Method Not Allowed"), nil
}

func parseKeyword(body string) (*keywordRequest, error) {
	var in keywordRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return nil, errors.New("invalid request body")
	}
	in.Keyword = strings.TrimSpace(in.Keyword)
	in.Signal = strings.TrimSpace(in.Signal)
	if in.Keyword == "" || in.Signal == "" {
		return nil, errors.New("keyword and signal are required")
	}
	return &in, nil
}

func (h *Handler) list(ctx context.Context) events.APIGatewayProxyResponse {
	keywords, err := h.keywords.ListKeywords(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list keywords")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	if keywords == nil {
		return utils.JSONResponse(http.StatusOK, []any{})
	}
	return utils.JSONResponse(http.StatusOK, keywords)
}

func (h *Handler) get(ctx context.Context, id int64) events.APIGatewayProxyResponse {
	keyword, err := h.keywords.GetKeyword(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(http.StatusNotFound, "Keyword not found")
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get keyword")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, keyword)
}

func (h *Handler) create(ctx context.Context, body string) events.APIGatewayProxyResponse {
	in, err := parseKeyword(body)
	if err != nil {
		return utils.ErrorResponse(http.StatusBadRequest, err.Error())
	}

	id, err := h.keywords.CreateKeyword(ctx, in.Keyword, in.Signal)
	if database.IsUniqueViolation(err) {
		return utils.ErrorResponse(http.StatusConflict, "Keyword already exists")
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to create keyword")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, keywordResponse{ID: id, Keyword: in.Keyword, Signal: in.Signal})
}

func (h *Handler) update(ctx context.Context, id int64, body string) events.APIGatewayProxyResponse {
	in, err := parseKeyword(body)
	if err != nil {
		return utils.ErrorResponse(http.StatusBadRequest, err.Error())
	}

	// MySQL reports zero affected rows for an unchanged row, so existence is
	// checked with a read.
	if _, err := h.keywords.GetKeyword(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrorResponse(http.StatusNotFound, "Keyword not found")
		}
		h.logger.WithError(err).Error("Failed to get keyword")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}

	err = h.keywords.UpdateKeyword(ctx, id, in.Keyword, in.Signal)
	if database.IsUniqueViolation(err) {
		return utils.ErrorResponse(http.StatusConflict, "Keyword already exists")
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to update keyword")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, keywordResponse{ID: id, Keyword: in.Keyword, Signal: in.Signal})
}

func (h *Handler) delete(ctx context.Context, id int64) events.APIGatewayProxyResponse {
	err := h.keywords.DeleteKeyword(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(http.StatusNotFound, "Keyword not found")
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete keyword")
		return utils.ErrorResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	return utils.JSONResponse(http.StatusOK, utils.MessageBody{Message: "Keyword deleted"})
}
