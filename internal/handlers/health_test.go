package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		want   string
	}{
		{"all up", map[string]HealthCheck{"postgres": up, "redis": up}, http.StatusOK, "ok"},
		{"redis down", map[string]HealthCheck{"postgres": up, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewHealthHandler(tc.checks).Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, rr.Code)
			body := decode[struct {
				Status       string            `json:"status"`
				Dependencies map[string]string `json:"dependencies"`
			}](t, rr)
			require.Len(t, body.Dependencies, 2)
			assert.Equal(t, tc.want, body.Status)
		})
	}
}
