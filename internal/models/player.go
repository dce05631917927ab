package models

import "github.com/google/uuid"

// Player is the remote record kept for each identity. AddPlayer always sets
// Ready to true; nothing clears it remotely.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Language string    `json:"language"`
	Ready    bool      `json:"ready"`
}
