package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/log"
)

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil chat service", func(t *testing.T) {
		t.Parallel()
		_, err := NewServer(ServerConfig{History: &fakeHistoryReader{}})
		assert.Error(t, err)
	})

	t.Run("nil history reader", func(t *testing.T) {
		t.Parallel()
		_, err := NewServer(ServerConfig{Chat: &fakeChatService{}})
		assert.Error(t, err)
	})
}

// TestServer_Routes verifies the assembled handler serves all routes
// through the middleware chain.
func TestServer_Routes(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(ServerConfig{
		Logger:  log.NewNop(),
		Chat:    &fakeChatService{resp: &chat.Response{Status: chat.StatusSuccess, SessionID: "s1", Answer: "a"}},
		History: &fakeHistoryReader{},
	})
	require.NoError(t, err)
	h := srv.Handler()

	t.Run("health", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("ready without pool", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestServer_RateLimitApplied verifies the limiter participates in the
// chain when configured.
func TestServer_RateLimitApplied(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Chat:      &fakeChatService{resp: &chat.Response{Status: chat.StatusSuccess}},
		History:   &fakeHistoryReader{},
		RateRPS:   1,
		RateBurst: 1,
	})
	require.NoError(t, err)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.7:1234"

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
