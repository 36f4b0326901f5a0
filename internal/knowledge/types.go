package knowledge

import "time"

// Document represents a knowledge-base passage.
type Document struct {
	ID        string    // Unique identifier
	Content   string    // Passage text
	CreatedAt time.Time // Creation timestamp
}
