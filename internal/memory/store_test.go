package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/voyago/internal/log"
)

// fakeQuerier is an in-memory Querier that mimics the database
// semantics the store relies on: monotonic per-session sequence
// numbers, ordered listing, and prefix deletion.
type fakeQuerier struct {
	messages  map[string][]MessageRow
	summaries map[string]string
	nextSeq   map[string]int64

	insertErr  error
	summaryErr error
	upsertErr  error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		messages:  make(map[string][]MessageRow),
		summaries: make(map[string]string),
		nextSeq:   make(map[string]int64),
	}
}

func (f *fakeQuerier) InsertMessage(_ context.Context, arg InsertMessageParams) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextSeq[arg.SessionID]++
	f.messages[arg.SessionID] = append(f.messages[arg.SessionID], MessageRow{
		Seq:     f.nextSeq[arg.SessionID],
		Role:    arg.Role,
		Content: arg.Content,
	})
	return nil
}

func (f *fakeQuerier) CountMessages(_ context.Context, sessionID string) (int64, error) {
	return int64(len(f.messages[sessionID])), nil
}

func (f *fakeQuerier) ListMessages(_ context.Context, sessionID string) ([]MessageRow, error) {
	return append([]MessageRow(nil), f.messages[sessionID]...), nil
}

func (f *fakeQuerier) ListOldestMessages(_ context.Context, arg ListOldestMessagesParams) ([]MessageRow, error) {
	rows := f.messages[arg.SessionID]
	n := int(arg.Limit)
	if n > len(rows) {
		n = len(rows)
	}
	return append([]MessageRow(nil), rows[:n]...), nil
}

func (f *fakeQuerier) DeleteMessagesThrough(_ context.Context, arg DeleteMessagesThroughParams) error {
	var kept []MessageRow
	for _, row := range f.messages[arg.SessionID] {
		if row.Seq > arg.Seq {
			kept = append(kept, row)
		}
	}
	f.messages[arg.SessionID] = kept
	return nil
}

func (f *fakeQuerier) GetSummary(_ context.Context, sessionID string) (string, error) {
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return f.summaries[sessionID], nil
}

func (f *fakeQuerier) UpsertSummary(_ context.Context, arg UpsertSummaryParams) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.summaries[arg.SessionID] = arg.Summary
	return nil
}

func (f *fakeQuerier) DeleteSession(_ context.Context, sessionID string) error {
	delete(f.messages, sessionID)
	delete(f.summaries, sessionID)
	delete(f.nextSeq, sessionID)
	return nil
}

// fakeSummarizer records the prompts it receives and returns a canned
// summary or an error.
type fakeSummarizer struct {
	prompts []string
	result  string
	err     error
}

func (f *fakeSummarizer) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func newTestStore(t *testing.T, q Querier, sum Summarizer, cfg Config) *Store {
	t.Helper()
	store, err := New(q, nil, sum, cfg, log.NewNop())
	require.NoError(t, err)
	return store
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil querier", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil, nil, nil, Config{MaxTurns: 6}, log.NewNop())
		assert.Error(t, err)
	})

	t.Run("non-positive max turns", func(t *testing.T) {
		t.Parallel()
		_, err := New(newFakeQuerier(), nil, nil, Config{MaxTurns: 0}, log.NewNop())
		assert.Error(t, err)
	})
}

func TestAppend_InvalidRole(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, newFakeQuerier(), nil, Config{MaxTurns: 6})
	err := store.Append(context.Background(), "s1", "system", "hi")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

// TestHistory_RoundTrip verifies appended turns come back in order with
// roles and content intact.
func TestHistory_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, newFakeQuerier(), nil, Config{MaxTurns: 6})

	n, err := store.AppendTurn(ctx, "s1", "where to go?", "try the coast")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "where to go?"}, history[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "try the coast"}, history[1])
}

// TestHistory_UnknownSession verifies unknown sessions yield empty
// history and empty summary, not errors.
func TestHistory_UnknownSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, newFakeQuerier(), nil, Config{MaxTurns: 6})

	history, err := store.History(ctx, "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)

	summary, err := store.Summary(ctx, "never-seen")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

// TestAppendTurn_TrimAndSummarize drives a session past the retention
// window and verifies the overflow is summarized then evicted.
func TestAppendTurn_TrimAndSummarize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	sum := &fakeSummarizer{result: "trip planning so far"}
	store := newTestStore(t, q, sum, Config{MaxTurns: 6})

	// 7 turns of 2 messages each: the 7th append overflows the
	// 12-message window by exactly 2.
	for i := 1; i <= 7; i++ {
		_, err := store.AppendTurn(ctx, "s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 12)
	// Oldest turn evicted, newest retained.
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "a7", history[11].Content)

	// Exactly one summarization call, covering only the evicted turn.
	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "User: q1")
	assert.Contains(t, sum.prompts[0], "Assistant: a1")
	assert.NotContains(t, sum.prompts[0], "q2")

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "trip planning so far", summary)
}

// TestAppendTurn_ReturnsRetainedLength verifies the returned length
// tracks the post-trim window.
func TestAppendTurn_ReturnsRetainedLength(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, newFakeQuerier(), &fakeSummarizer{result: "s"}, Config{MaxTurns: 2})

	lengths := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		n, err := store.AppendTurn(ctx, "s1", "q", "a")
		require.NoError(t, err)
		lengths = append(lengths, n)
	}
	// Window is 4 messages: grows to the cap then stays there.
	assert.Equal(t, []int{2, 4, 4, 4}, lengths)
}

// TestAppendTurn_SummarizationFailureStillTrims verifies a failing
// summarizer never blocks eviction and leaves the previous summary
// unchanged.
func TestAppendTurn_SummarizationFailureStillTrims(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	q.summaries["s1"] = "earlier summary"
	sum := &fakeSummarizer{err: errors.New("model unavailable")}
	store := newTestStore(t, q, sum, Config{MaxTurns: 1})

	_, err := store.AppendTurn(ctx, "s1", "q1", "a1")
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, "s1", "q2", "a2")
	require.NoError(t, err)

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q2", history[0].Content)

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "earlier summary", summary)
}

// TestSummarize_MergePrevious verifies the previous summary is carried
// into the summarization prompt when merging is enabled.
func TestSummarize_MergePrevious(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	q.summaries["s1"] = "user wants a beach holiday"
	sum := &fakeSummarizer{result: "merged summary"}
	store := newTestStore(t, q, sum, Config{MaxTurns: 1, MergePrevious: true})

	_, err := store.AppendTurn(ctx, "s1", "q1", "a1")
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, "s1", "q2", "a2")
	require.NoError(t, err)

	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "Previous summary:\nuser wants a beach holiday")

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "merged summary", summary)
}

// TestSummarize_ReplacePolicy verifies the previous summary is not fed
// back when merging is disabled.
func TestSummarize_ReplacePolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	q.summaries["s1"] = "old"
	sum := &fakeSummarizer{result: "new"}
	store := newTestStore(t, q, sum, Config{MaxTurns: 1, MergePrevious: false})

	_, err := store.AppendTurn(ctx, "s1", "q1", "a1")
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, "s1", "q2", "a2")
	require.NoError(t, err)

	require.Len(t, sum.prompts, 1)
	assert.NotContains(t, sum.prompts[0], "Previous summary:")

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "new", summary)
}

// TestSummarize_Truncation verifies the stored summary is bounded.
func TestSummarize_Truncation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	sum := &fakeSummarizer{result: strings.Repeat("x", 200)}
	store := newTestStore(t, q, sum, Config{MaxTurns: 1, MaxSummaryChars: 50})

	_, err := store.AppendTurn(ctx, "s1", "q1", "a1")
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, "s1", "q2", "a2")
	require.NoError(t, err)

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, summary, 50)
}

// TestNilSummarizer verifies overflow is still trimmed when no
// summarizer is configured.
func TestNilSummarizer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	store := newTestStore(t, q, nil, Config{MaxTurns: 1})

	_, err := store.AppendTurn(ctx, "s1", "q1", "a1")
	require.NoError(t, err)
	n, err := store.AppendTurn(ctx, "s1", "q2", "a2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	summary, err := store.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

// TestSessionIsolation verifies sessions do not share history or
// summaries.
func TestSessionIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t, newFakeQuerier(), nil, Config{MaxTurns: 6})

	_, err := store.AppendTurn(ctx, "a", "question a", "answer a")
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, "b", "question b", "answer b")
	require.NoError(t, err)

	historyA, err := store.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, historyA, 2)
	assert.Equal(t, "question a", historyA[0].Content)

	historyB, err := store.History(ctx, "b")
	require.NoError(t, err)
	require.Len(t, historyB, 2)
	assert.Equal(t, "question b", historyB[0].Content)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := newFakeQuerier()
	store := newTestStore(t, q, nil, Config{MaxTurns: 6})

	_, err := store.AppendTurn(ctx, "s1", "q", "a")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "s1"))

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
}
