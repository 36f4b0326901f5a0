package memory

import (
	"strings"
	"unicode/utf8"
)

// summaryInstruction is the fixed instruction for summarization calls.
// The model is told explicitly not to fabricate; the summary must only
// compress what the transcript contains.
const summaryInstruction = "Summarize the following conversation excerpt briefly. " +
	"Preserve concrete facts, user preferences, and decisions. " +
	"Do not fabricate information that is not present in the conversation."

// buildSummaryPrompt renders the summarization prompt for an overflow
// batch. When previous is non-empty it is included so the new summary
// carries earlier context forward.
func buildSummaryPrompt(previous string, overflow []MessageRow) string {
	var b strings.Builder
	b.WriteString(summaryInstruction)
	b.WriteString("\n\n")

	if previous != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}

	b.WriteString("Conversation:\n")
	b.WriteString(renderTranscript(overflow))
	b.WriteString("\nSummary:")
	return b.String()
}

// renderTranscript renders messages as a role-labeled transcript, one
// line per message.
func renderTranscript(rows []MessageRow) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(capitalizeRole(row.Role))
		b.WriteString(": ")
		b.WriteString(row.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// capitalizeRole uppercases the first byte of a role label.
// Roles are ASCII ("user", "assistant").
func capitalizeRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// truncateRunes bounds s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
