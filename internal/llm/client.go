// Package llm wraps the generation model behind a single Complete
// operation. All response-shape handling happens at this boundary:
// callers receive either a non-empty answer string or an error, never
// a partially-recognized model response.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/voyago/voyago/internal/log"
)

// DefaultTimeout bounds a single completion call, including retries'
// individual attempts.
const DefaultTimeout = 60 * time.Second

var (
	// ErrEmptyPrompt indicates Complete was called with an empty prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrUnrecognizedResponse indicates the model returned a response
	// with no usable text.
	ErrUnrecognizedResponse = errors.New("unrecognized model response shape")
)

// Config contains the parameters for a Client.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // fully qualified, e.g. "googleai/gemini-2.5-flash"
	Logger    log.Logger

	Timeout     time.Duration // zero uses DefaultTimeout
	Retry       RetryConfig   // zero value uses DefaultRetryConfig
	RateLimiter *rate.Limiter // nil uses a default limiter
}

// Client is the generation-model adapter.
// Safe for concurrent use by multiple goroutines.
type Client struct {
	g       *genkit.Genkit
	model   string
	timeout time.Duration
	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:       cfg.Genkit,
		model:   cfg.ModelName,
		timeout: timeout,
		retry:   retry,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Complete sends the prompt to the model and returns the generated
// text. The call is bounded by the configured timeout; transient
// provider errors are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generateWithRetry(callCtx, prompt)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.logger.Warn("model returned response with no text", "model", c.model)
		return "", ErrUnrecognizedResponse
	}

	return text, nil
}

// generate runs a single model call.
func (c *Client) generate(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrUnrecognizedResponse
	}
	return resp, nil
}

// generateWithRetry executes generate with exponential backoff.
// Each attempt waits on the rate limiter first.
func (c *Client) generateWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.generate(ctx, prompt)
		if err == nil {
			c.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after transient error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generate canceled during backoff: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.retry.MaxInterval {
			delay = c.retry.MaxInterval
		}
	}

	return nil, fmt.Errorf("generate failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}
