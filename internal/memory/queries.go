package memory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx pool/tx behavior the queries need.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MessageRow is one stored conversation message.
type MessageRow struct {
	Seq     int64
	Role    string
	Content string
}

// InsertMessageParams are the inputs for InsertMessage.
type InsertMessageParams struct {
	SessionID string
	Role      string
	Content   string
}

// ListOldestMessagesParams are the inputs for ListOldestMessages.
type ListOldestMessagesParams struct {
	SessionID string
	Limit     int64
}

// DeleteMessagesThroughParams are the inputs for DeleteMessagesThrough.
type DeleteMessagesThroughParams struct {
	SessionID string
	Seq       int64
}

// UpsertSummaryParams are the inputs for UpsertSummary.
type UpsertSummaryParams struct {
	SessionID string
	Summary   string
}

// Queries runs the session-memory SQL against a pgx connection source.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given connection source.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertMessage = `
INSERT INTO chat_messages (session_id, seq, role, content)
SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
FROM chat_messages WHERE session_id = $1
`

// InsertMessage appends a message with the next sequence number for
// the session.
func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) error {
	_, err := q.db.Exec(ctx, insertMessage, arg.SessionID, arg.Role, arg.Content)
	return err
}

const countMessages = `SELECT count(*) FROM chat_messages WHERE session_id = $1`

// CountMessages returns the number of retained messages for a session.
func (q *Queries) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countMessages, sessionID).Scan(&count)
	return count, err
}

const listMessages = `
SELECT seq, role, content FROM chat_messages
WHERE session_id = $1
ORDER BY seq
`

// ListMessages returns all retained messages for a session in append order.
func (q *Queries) ListMessages(ctx context.Context, sessionID string) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listMessages, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

const listOldestMessages = `
SELECT seq, role, content FROM chat_messages
WHERE session_id = $1
ORDER BY seq
LIMIT $2
`

// ListOldestMessages returns the oldest messages for a session, in
// append order. Used to collect the overflow batch before trimming.
func (q *Queries) ListOldestMessages(ctx context.Context, arg ListOldestMessagesParams) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listOldestMessages, arg.SessionID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

const deleteMessagesThrough = `
DELETE FROM chat_messages WHERE session_id = $1 AND seq <= $2
`

// DeleteMessagesThrough removes all messages with sequence numbers up
// to and including seq.
func (q *Queries) DeleteMessagesThrough(ctx context.Context, arg DeleteMessagesThroughParams) error {
	_, err := q.db.Exec(ctx, deleteMessagesThrough, arg.SessionID, arg.Seq)
	return err
}

const getSummary = `SELECT summary FROM chat_summaries WHERE session_id = $1`

// GetSummary returns the stored summary, or empty string when the
// session has none.
func (q *Queries) GetSummary(ctx context.Context, sessionID string) (string, error) {
	var summary string
	err := q.db.QueryRow(ctx, getSummary, sessionID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return summary, err
}

const upsertSummary = `
INSERT INTO chat_summaries (session_id, summary, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (session_id) DO UPDATE
SET summary = EXCLUDED.summary, updated_at = now()
`

// UpsertSummary stores the rolling summary for a session.
func (q *Queries) UpsertSummary(ctx context.Context, arg UpsertSummaryParams) error {
	_, err := q.db.Exec(ctx, upsertSummary, arg.SessionID, arg.Summary)
	return err
}

const deleteSessionMessages = `DELETE FROM chat_messages WHERE session_id = $1`
const deleteSessionSummary = `DELETE FROM chat_summaries WHERE session_id = $1`

// DeleteSession removes all state for a session.
func (q *Queries) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := q.db.Exec(ctx, deleteSessionMessages, sessionID); err != nil {
		return err
	}
	_, err := q.db.Exec(ctx, deleteSessionSummary, sessionID)
	return err
}

func scanMessageRows(rows pgx.Rows) ([]MessageRow, error) {
	var result []MessageRow
	for rows.Next() {
		var r MessageRow
		if err := rows.Scan(&r.Seq, &r.Role, &r.Content); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
