package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"http 429", errors.New("server returned 429"), true},
		{"http 500", errors.New("internal error: 500"), true},
		{"http 503", errors.New("503 service unavailable"), true},
		{"unavailable", errors.New("model temporarily UNAVAILABLE"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded (timeout)"), true},
		{"invalid api key", errors.New("invalid API key"), false},
		{"bad request", errors.New("400 bad request"), false},
		{"model not found", errors.New("model not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	assert.True(t, containsAny("Rate Limit hit", "rate limit"))
	assert.True(t, containsAny("abc", "x", "b"))
	assert.False(t, containsAny("abc", "x", "y"))
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.MaxInterval)
}
