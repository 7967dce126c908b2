package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"measurement-gateway/internal/repository"
	"measurement-gateway/internal/testutil"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ruleBody = `{"name":"cart abandoners","include":{"event_name":"AddToCart","retention":1296000},"exclude":null}`

func newTestHandler(t *testing.T) (*Handler, *testutil.FakeGraph) {
	t.Helper()
	logger := testutil.Logger()
	graph := &testutil.FakeGraph{SubscriberList: json.RawMessage(`{"id":"238400"}`)}
	handler, err := NewHandler(logger, repository.NewAudienceRuleRepository(logger, testutil.NewDB(t)), graph)
	require.NoError(t, err)
	return handler, graph
}

func TestEventHandler_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	h, graph := newTestHandler(t)

	resp, err := h.EventHandler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: ruleBody})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, graph.SubscriberCalls)

	resp, err = h.EventHandler(ctx, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       `{"name":"buyers","exclude":{"event_name":"Purchase"}}`,
		QueryStringParameters: map[string]string{
			"su_access_token": "token",
			"wacs_id":         "1001",
			"ad_account_id":   "77",
		},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created createdResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
	assert.Equal(t, "238400", created.CreatedRule.SubscriberListID)
	assert.JSONEq(t, `{"id":"238400"}`, string(created.SubscriberList))
	require.Len(t, graph.SubscriberCalls, 1)
	assert.Equal(t, "1001", graph.SubscriberCalls[0].BusinessNumberID)
	assert.Equal(t, "buyers", graph.SubscriberCalls[0].Name)

	resp, err = h.EventHandler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	require.NoError(t, err)
	var listed struct {
		Result []struct {
			Name             string          `json:"name"`
			Include          json.RawMessage `json:"include"`
			SubscriberListID string          `json:"subscriber_list_id"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &listed))
	require.Len(t, listed.Result, 2)
	assert.Equal(t, "cart abandoners", listed.Result[0].Name)
	assert.JSONEq(t, `{"event_name":"AddToCart","retention":1296000}`, string(listed.Result[0].Include))
	assert.Equal(t, "238400", listed.Result[1].SubscriberListID)

	resp, err = h.EventHandler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Successfully deleted all the rules","deleted":2}`, resp.Body)

	resp, err = h.EventHandler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":[]}`, resp.Body)
}

func TestEventHandler_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		req    events.APIGatewayProxyRequest
		status int
	}{
		{"missing name", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{"include":{}}`}, http.StatusBadRequest},
		{"missing rules", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{"name":"x","include":null}`}, http.StatusBadRequest},
		{"invalid body", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{`}, http.StatusBadRequest},
		{"method not allowed", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPut}, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			resp, err := h.EventHandler(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("subscriber list failure", func(t *testing.T) {
		h, graph := newTestHandler(t)
		graph.SubscriberErr = errors.New("invalid token")

		resp, err := h.EventHandler(ctx, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Body:       ruleBody,
			QueryStringParameters: map[string]string{
				"su_access_token": "token",
				"wacs_id":         "1001",
				"ad_account_id":   "77",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		resp, err = h.EventHandler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
		require.NoError(t, err)
		assert.JSONEq(t, `{"result":[]}`, resp.Body)
	})
}
