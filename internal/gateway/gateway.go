// internal/gateway/gateway.go
package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
)

// Gateway is the remote player/round store. Reads are eventually consistent
// snapshots; callers poll rather than subscribe.
type Gateway interface {
	// AddPlayer upserts the caller's player record with Ready=true and the given language.
	AddPlayer(ctx context.Context, id uuid.UUID, language string) error
	GetAllPlayers(ctx context.Context) ([]models.Player, error)
	// GetPlayer returns nil, nil when no record exists.
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)

	// CreateRound records a round starting now for language, with the ready players of that language.
	CreateRound(ctx context.Context, language string) error
	GetAllRounds(ctx context.Context) ([]models.Round, error)
	// GetRound returns nil, nil when no round starts at startTime.
	GetRound(ctx context.Context, startTime int64) (*models.Round, error)
}

// ReadyPlayers filters players down to those marked ready.
func ReadyPlayers(players []models.Player) []models.Player {
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		if p.Ready {
			out = append(out, p)
		}
	}
	return out
}
