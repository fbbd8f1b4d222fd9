package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestReadyReflectsCriticality(t *testing.T) {
	tests := []struct {
		name       string
		postgres   func(context.Context) error
		redis      func(context.Context) error
		wantStatus Status
		wantCode   int
	}{
		{"all up", ok, ok, StatusUp, http.StatusOK},
		{"cache down", ok, fail, StatusDegraded, http.StatusOK},
		{"store down", fail, ok, StatusDown, http.StatusServiceUnavailable},
		{"both down", fail, fail, StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Register("postgres", PingCheck(tt.postgres, true))
			c.Register("redis", PingCheck(tt.redis, false))

			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var report Report
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Len(t, report.Components, 2)
		})
	}
}

func TestLiveNeverProbes(t *testing.T) {
	c := NewChecker()
	c.Register("postgres", func(context.Context) ComponentHealth {
		t.Fatal("liveness must not run checks")
		return ComponentHealth{}
	})
	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
