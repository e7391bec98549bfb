package domain

import "github.com/google/uuid"

// NewID generates a new random identifier for domain entities.
func NewID() string {
	return uuid.NewString()
}
