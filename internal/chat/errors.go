package chat

import "errors"

// Error kinds for a failed turn. The user-visible payload is always
// the same generic error result; these let logs and tests distinguish
// what actually broke. Check with errors.Is().
var (
	// ErrEmptyQuestion indicates the request carried no question.
	// Rejected before any dependency is called.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrRetrieval indicates the document store failed. Distinct from a
	// successful search with no matches, which is not an error.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrMemory indicates session history or summary could not be read.
	ErrMemory = errors.New("session memory read failed")

	// ErrGeneration indicates the model call failed or returned an
	// unusable response.
	ErrGeneration = errors.New("generation failed")
)
