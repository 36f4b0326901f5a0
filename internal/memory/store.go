// Package memory implements the session memory store: per-session
// conversation history with bounded retention and a rolling summary of
// evicted turns.
//
// State lives in PostgreSQL, partitioned by session_id. The history
// window holds the most recent 2*MaxTurns messages; everything older
// is compressed into a summary by the generation model and deleted.
// Summarization failure never fails an append: the error is logged,
// the summary stays unchanged, and trimming proceeds.
//
// Concurrent turns on one session are a race: appends are sequenced by
// the database, but two interleaved turns may observe each other's
// partial state. Callers that need strict ordering should serialize
// per session.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyago/voyago/internal/log"
)

// summarizeTimeout bounds one summarization call so a slow model
// cannot stall the append path.
const summarizeTimeout = 30 * time.Second

// Summarizer produces a text completion for a summarization prompt.
// Satisfied by *llm.Client.
type Summarizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Querier defines the database operations the store needs.
// *Queries is the production implementation; tests use a mock.
type Querier interface {
	InsertMessage(ctx context.Context, arg InsertMessageParams) error
	CountMessages(ctx context.Context, sessionID string) (int64, error)
	ListMessages(ctx context.Context, sessionID string) ([]MessageRow, error)
	ListOldestMessages(ctx context.Context, arg ListOldestMessagesParams) ([]MessageRow, error)
	DeleteMessagesThrough(ctx context.Context, arg DeleteMessagesThroughParams) error
	GetSummary(ctx context.Context, sessionID string) (string, error)
	UpsertSummary(ctx context.Context, arg UpsertSummaryParams) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Config contains the parameters for a Store.
type Config struct {
	// MaxTurns is the number of retained turns; the history window is
	// 2*MaxTurns messages. Must be positive.
	MaxTurns int

	// MergePrevious selects the summary policy. When true (default
	// behavior chosen for this system), the previous summary is fed
	// back into the summarization prompt so retention compounds. When
	// false, only the latest overflow batch's summary survives.
	MergePrevious bool

	// MaxSummaryChars bounds the stored summary. Zero uses 1500.
	MaxSummaryChars int
}

// Store manages per-session conversation state.
// Safe for concurrent use across sessions; see the package comment for
// same-session concurrency.
type Store struct {
	querier    Querier
	pool       *pgxpool.Pool // nil disables transactional turn appends (tests)
	summarizer Summarizer
	logger     log.Logger

	maxTurns        int
	mergePrevious   bool
	maxSummaryChars int
}

// New creates a Store. pool may be nil when querier is a mock; the
// summarizer may be nil to disable summarization entirely (overflow is
// then trimmed without compression).
func New(querier Querier, pool *pgxpool.Pool, summarizer Summarizer, cfg Config, logger log.Logger) (*Store, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if cfg.MaxTurns <= 0 {
		return nil, fmt.Errorf("max turns must be positive, got %d", cfg.MaxTurns)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	maxChars := cfg.MaxSummaryChars
	if maxChars <= 0 {
		maxChars = 1500
	}

	return &Store{
		querier:         querier,
		pool:            pool,
		summarizer:      summarizer,
		logger:          logger,
		maxTurns:        cfg.MaxTurns,
		mergePrevious:   cfg.MergePrevious,
		maxSummaryChars: maxChars,
	}, nil
}

// window is the maximum number of retained messages.
func (s *Store) window() int64 {
	return int64(2 * s.maxTurns)
}

// Append appends a single message to a session's history, then runs
// the summarization check and trims the history to the retained
// window. The session is created implicitly on first append.
func (s *Store) Append(ctx context.Context, sessionID, role, content string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if err := s.querier.InsertMessage(ctx, InsertMessageParams{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}

	_, err := s.maintain(ctx, sessionID)
	return err
}

// AppendTurn appends a user question and the assistant's answer as one
// unit, preserving order, then runs the summarization check and trim.
// Returns the retained history length after the append.
//
// When a connection pool is available both inserts run in a single
// transaction, so a half-written turn is never visible.
func (s *Store) AppendTurn(ctx context.Context, sessionID, question, answer string) (int, error) {
	if err := s.insertTurn(ctx, sessionID, question, answer); err != nil {
		return 0, fmt.Errorf("appending turn: %w", err)
	}
	return s.maintain(ctx, sessionID)
}

func (s *Store) insertTurn(ctx context.Context, sessionID, question, answer string) error {
	userMsg := InsertMessageParams{SessionID: sessionID, Role: RoleUser, Content: question}
	assistantMsg := InsertMessageParams{SessionID: sessionID, Role: RoleAssistant, Content: answer}

	if s.pool == nil {
		if err := s.querier.InsertMessage(ctx, userMsg); err != nil {
			return err
		}
		return s.querier.InsertMessage(ctx, assistantMsg)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := NewQueries(tx)
	if err := q.InsertMessage(ctx, userMsg); err != nil {
		return err
	}
	if err := q.InsertMessage(ctx, assistantMsg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// History returns the retained message window in append order.
// Unknown sessions yield an empty slice, never an error.
func (s *Store) History(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.querier.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, Message{Role: row.Role, Content: row.Content})
	}
	return messages, nil
}

// Summary returns the current rolling summary, empty string if none
// exists yet.
func (s *Store) Summary(ctx context.Context, sessionID string) (string, error) {
	summary, err := s.querier.GetSummary(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading summary: %w", err)
	}
	return summary, nil
}

// Delete removes all state for a session. Extension point; nothing in
// the request path deletes sessions.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.querier.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	s.logger.Debug("deleted session", "session_id", sessionID)
	return nil
}

// maintain runs the summarization check and trims the history to the
// retained window. Summarization runs BEFORE the trim so the overflow
// batch is still readable; its failure is logged and swallowed, and
// the trim proceeds regardless. Returns the retained history length.
func (s *Store) maintain(ctx context.Context, sessionID string) (int, error) {
	count, err := s.querier.CountMessages(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}

	window := s.window()
	if count <= window {
		return int(count), nil
	}

	overflow, err := s.querier.ListOldestMessages(ctx, ListOldestMessagesParams{
		SessionID: sessionID,
		Limit:     count - window,
	})
	if err != nil {
		return 0, fmt.Errorf("loading overflow batch: %w", err)
	}
	if len(overflow) == 0 {
		return int(count), nil
	}

	s.summarizeOverflow(ctx, sessionID, overflow)

	if err := s.querier.DeleteMessagesThrough(ctx, DeleteMessagesThroughParams{
		SessionID: sessionID,
		Seq:       overflow[len(overflow)-1].Seq,
	}); err != nil {
		return 0, fmt.Errorf("trimming history: %w", err)
	}

	s.logger.Debug("trimmed history",
		"session_id", sessionID,
		"evicted", len(overflow),
		"retained", window)
	return int(window), nil
}

// summarizeOverflow compresses the overflow batch into the rolling
// summary. Never returns an error: all failures are logged and the
// previous summary is left unchanged.
func (s *Store) summarizeOverflow(ctx context.Context, sessionID string, overflow []MessageRow) {
	if s.summarizer == nil {
		return
	}

	previous := ""
	if s.mergePrevious {
		prev, err := s.querier.GetSummary(ctx, sessionID)
		if err != nil {
			s.logger.Warn("loading previous summary failed, summarizing without it",
				"session_id", sessionID, "error", err)
		} else {
			previous = prev
		}
	}

	sumCtx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	summary, err := s.summarizer.Complete(sumCtx, buildSummaryPrompt(previous, overflow))
	if err != nil {
		s.logger.Warn("summarization failed, keeping previous summary",
			"session_id", sessionID, "error", err)
		return
	}

	summary = truncateRunes(summary, s.maxSummaryChars)
	if err := s.querier.UpsertSummary(ctx, UpsertSummaryParams{
		SessionID: sessionID,
		Summary:   summary,
	}); err != nil {
		s.logger.Warn("storing summary failed",
			"session_id", sessionID, "error", err)
		return
	}

	s.logger.Debug("updated rolling summary",
		"session_id", sessionID,
		"batch_messages", len(overflow),
		"summary_length", len(summary))
}
