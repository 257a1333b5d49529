package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCore struct{ done chan struct{} }

func (f fakeCore) Done() <-chan struct{} { return f.done }

func TestGetHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil).GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestGetReadyFollowsCoordinator(t *testing.T) {
	core := fakeCore{done: make(chan struct{})}
	h := NewHandler(core)

	rec := httptest.NewRecorder()
	h.GetReady(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	close(core.done)

	rec = httptest.NewRecorder()
	h.GetReady(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
