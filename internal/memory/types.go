package memory

import "errors"

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidRole indicates a role other than user/assistant was appended.
var ErrInvalidRole = errors.New("invalid message role")

// Message is a single conversation message. Immutable once created;
// ordered within a session by append order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
