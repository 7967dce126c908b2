package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"measurement-gateway/internal/models"
	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/testutil"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := testutil.Logger()
	handler, err := NewHandler(logger, repository.NewKeywordRepository(logger, testutil.NewDB(t)))
	require.NoError(t, err)
	return handler
}

func call(t *testing.T, h *Handler, method, id, body string) events.APIGatewayProxyResponse {
	t.Helper()
	req := events.APIGatewayProxyRequest{HTTPMethod: method, Body: body}
	if id != "" {
		req.PathParameters = map[string]string{"id": id}
	}
	resp, err := h.EventHandler(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func TestEventHandler_CRUD(t *testing.T) {
	h := newTestHandler(t)

	resp := call(t, h, http.MethodGet, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, resp.Body)

	resp = call(t, h, http.MethodPost, "", `{"keyword":"price","signal":"interest"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created keywordResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
	assert.Equal(t, "price", created.Keyword)
	assert.NotZero(t, created.ID)
	idParam := strconv.FormatInt(created.ID, 10)

	resp = call(t, h, http.MethodPut, idParam, `{"keyword":"cost","signal":"interest"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, h, http.MethodGet, idParam, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var keyword models.Keyword
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &keyword))
	assert.Equal(t, "cost", keyword.Keyword)
	assert.Equal(t, "interest", keyword.Signal)

	resp = call(t, h, http.MethodGet, "", "")
	var keywords []models.Keyword
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &keywords))
	assert.Len(t, keywords, 1)

	resp = call(t, h, http.MethodDelete, idParam, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, h, http.MethodGet, idParam, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventHandler_Errors(t *testing.T) {
	h := newTestHandler(t)
	resp := call(t, h, http.MethodPost, "", `{"keyword":"price","signal":"interest"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		id     string
		body   string
		status int
	}{
		{"duplicate keyword", http.MethodPost, "", `{"keyword":"price","signal":"other"}`, http.StatusConflict},
		{"missing signal", http.MethodPost, "", `{"keyword":"buy"}`, http.StatusBadRequest},
		{"invalid body", http.MethodPost, "", `nope`, http.StatusBadRequest},
		{"invalid id", http.MethodGet, "abc", "", http.StatusBadRequest},
		{"update unknown", http.MethodPut, "999", `{"keyword":"a","signal":"b"}`, http.StatusNotFound},
		{"update without id", http.MethodPut, "", `{"keyword":"a","signal":"b"}`, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "999", "", http.StatusNotFound},
		{"method not allowed", http.MethodPatch, "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, h, tt.method, tt.id, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
