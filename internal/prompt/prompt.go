// Package prompt assembles the single prompt string sent to the
// generation model.
//
// Section ordering is a behavioral contract: persona preamble, then
// conversation summary, then recent history, then retrieved passages,
// then the generation anchor. Sections with no data are omitted
// entirely.
package prompt

import (
	"strings"

	"github.com/voyago/voyago/internal/memory"
)

// Preamble establishes the assistant persona.
const Preamble = "You are a helpful travel assistant."

// Build composes the prompt from the question, the retained history,
// the retrieved document contents (relevance-descending, as supplied
// by the retriever), and the rolling summary. Pure function: no I/O,
// deterministic given its inputs.
func Build(question string, history []memory.Message, docs []string, summary string) string {
	var b strings.Builder

	b.WriteString(Preamble)
	b.WriteString("\n\n")

	if summary != "" {
		b.WriteString("Conversation summary:\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range history {
			b.WriteString(capitalize(msg.Role))
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	if len(docs) > 0 {
		b.WriteString("\nRelevant Information:\n")
		for _, doc := range docs {
			b.WriteString("- ")
			b.WriteString(doc)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUser: ")
	b.WriteString(question)
	b.WriteString("\nAssistant:")

	return b.String()
}

// capitalize uppercases the first byte. Role labels are ASCII.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
