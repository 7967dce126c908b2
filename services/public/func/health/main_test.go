package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"measurement-gateway/internal/testutil"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestEventHandler(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		status int
		body   string
	}{
		{"healthy", fakePinger{}, http.StatusOK, `{"status":"ok","database":"ok"}`},
		{"sqlite", testutil.NewDB(t), http.StatusOK, `{"status":"ok","database":"ok"}`},
		{"unreachable", fakePinger{err: errors.New("dial tcp: i/o timeout")}, http.StatusServiceUnavailable, `{"status":"degraded","database":"unreachable"}`},
		{"not configured", nil, http.StatusServiceUnavailable, `{"status":"degraded","database":"not configured"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handler{logger: testutil.Logger(), db: tt.db}
			resp, err := h.EventHandler(context.Background(), events.APIGatewayProxyRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, resp.Body)
		})
	}
}
