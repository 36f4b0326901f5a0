// Package chat coordinates one conversational turn end to end:
// retrieval, memory read, prompt assembly, generation, and memory
// write.
//
// Failure policy: any failure before the answer exists produces a
// structured error result with a generic user-facing message and
// leaves session state untouched. No raw error detail reaches the
// caller; kinds are distinguishable via errors.go and in logs.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/memory"
	"github.com/voyago/voyago/internal/prompt"
)

// FallbackAnswer is the generic user-visible message for a failed turn.
const FallbackAnswer = "Sorry, something went wrong."

// maxTopK caps the per-request retrieval depth.
const maxTopK = 10

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Retriever is the document store as the orchestrator sees it.
// Satisfied by *knowledge.Store.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]knowledge.Document, error)
}

// Memory is the session memory store as the orchestrator sees it.
// Satisfied by *memory.Store.
type Memory interface {
	History(ctx context.Context, sessionID string) ([]memory.Message, error)
	Summary(ctx context.Context, sessionID string) (string, error)
	AppendTurn(ctx context.Context, sessionID, question, answer string) (int, error)
}

// Completer is the generation model as the orchestrator sees it.
// Satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is one chat turn's input. SessionID may be empty; a new
// session is created. TopK <= 0 uses the configured default.
type Request struct {
	SessionID string
	Question  string
	TopK      int
}

// Response is the result of one chat turn. On error, Status is
// StatusError, Answer is the generic fallback, and the remaining
// fields are zero.
type Response struct {
	Status        string   `json:"status"`
	SessionID     string   `json:"session_id"`
	Question      string   `json:"question,omitempty"`
	Answer        string   `json:"answer"`
	RetrievedDocs []string `json:"retrieved_docs,omitempty"`
	HistoryLength int      `json:"history_length,omitempty"`
}

// Config contains all required parameters for the orchestrator.
type Config struct {
	Retriever Retriever
	Memory    Memory
	Completer Completer
	Logger    log.Logger
	TopK      int // default retrieval depth; must be 1..maxTopK
}

// Chat orchestrates conversational turns. Stateless between requests;
// safe for concurrent use.
type Chat struct {
	retriever Retriever
	memory    Memory
	completer Completer
	logger    log.Logger
	topK      int
}

// New creates a Chat orchestrator.
func New(cfg Config) (*Chat, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("memory store is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if cfg.TopK < 1 || cfg.TopK > maxTopK {
		return nil, fmt.Errorf("top_k must be between 1 and %d, got %d", maxTopK, cfg.TopK)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Chat{
		retriever: cfg.Retriever,
		memory:    cfg.Memory,
		completer: cfg.Completer,
		logger:    logger,
		topK:      cfg.TopK,
	}, nil
}

// Handle runs one turn. The returned Response is always non-nil; when
// it carries StatusError the returned error holds the kind (one of
// errors.go) for callers that log or test against it.
func (c *Chat) Handle(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Question)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Malformed input is rejected before any dependency is called.
	if question == "" {
		return c.fail(sessionID, ErrEmptyQuestion)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = c.topK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	// The three reads touch disjoint resources, so they run
	// concurrently. Latency optimization only; any failure fails the
	// turn before state is mutated.
	var (
		docs    []knowledge.Document
		history []memory.Message
		summary string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := c.retriever.Query(gctx, question, topK)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetrieval, err)
		}
		docs = d
		return nil
	})
	g.Go(func() error {
		h, err := c.memory.History(gctx, sessionID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMemory, err)
		}
		history = h
		return nil
	})
	g.Go(func() error {
		s, err := c.memory.Summary(gctx, sessionID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMemory, err)
		}
		summary = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return c.fail(sessionID, err)
	}

	docTexts := make([]string, 0, len(docs))
	for _, doc := range docs {
		docTexts = append(docTexts, doc.Content)
	}

	answer, err := c.completer.Complete(ctx, prompt.Build(question, history, docTexts, summary))
	if err != nil {
		return c.fail(sessionID, fmt.Errorf("%w: %v", ErrGeneration, err))
	}

	// Persist the turn. The answer already exists, so a write failure
	// is logged rather than discarding the response; AppendTurn is
	// transactional, so a half-written turn is never stored.
	historyLen, err := c.memory.AppendTurn(ctx, sessionID, question, answer)
	if err != nil {
		c.logger.Error("persisting turn failed",
			"session_id", sessionID, "error", err)
		historyLen = len(history) + 2
	}

	return &Response{
		Status:        StatusSuccess,
		SessionID:     sessionID,
		Question:      question,
		Answer:        answer,
		RetrievedDocs: docTexts,
		HistoryLength: historyLen,
	}, nil
}

// fail logs the error with its kind and builds the generic error
// result. Session state is untouched.
func (c *Chat) fail(sessionID string, err error) (*Response, error) {
	kind := "internal"
	switch {
	case errors.Is(err, ErrEmptyQuestion):
		kind = "malformed_request"
	case errors.Is(err, ErrRetrieval):
		kind = "retrieval"
	case errors.Is(err, ErrMemory):
		kind = "memory"
	case errors.Is(err, ErrGeneration):
		kind = "generation"
	}

	c.logger.Error("chat turn failed",
		"session_id", sessionID,
		"kind", kind,
		"error", err)

	return &Response{
		Status:    StatusError,
		SessionID: sessionID,
		Answer:    FallbackAnswer,
	}, err
}
