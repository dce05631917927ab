package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Gateway used for development and tests.
type Memory struct {
	clock clockwork.Clock

	mu      sync.Mutex
	players map[uuid.UUID]models.Player
	order   []uuid.UUID
	rounds  map[int64]models.Round
}

// NewMemory creates an empty store. clock stamps round start times.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:   clock,
		players: make(map[uuid.UUID]models.Player),
		rounds:  make(map[int64]models.Round),
	}
}

func (m *Memory) AddPlayer(_ context.Context, id uuid.UUID, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.players[id]; !exists {
		m.order = append(m.order, id)
	}
	m.players[id] = models.Player{ID: id, Language: language, Ready: true}
	return nil
}

func (m *Memory) GetAllPlayers(_ context.Context) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Player, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.players[id])
	}
	return out, nil
}

func (m *Memory) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) CreateRound(_ context.Context, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := m.clock.Now().UnixNano()
	// keep keys unique when rounds are created within the same instant
	for {
		if _, taken := m.rounds[start]; !taken {
			break
		}
		start++
	}

	var players []models.Player
	for _, id := range m.order {
		p := m.players[id]
		if p.Ready && p.Language == language {
			players = append(players, p)
		}
	}
	m.rounds[start] = models.Round{StartTime: start, Language: language, Players: players}
	return nil
}

func (m *Memory) GetAllRounds(_ context.Context) ([]models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Round, 0, len(m.rounds))
	for _, r := range m.rounds {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *Memory) GetRound(_ context.Context, startTime int64) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[startTime]
	if !ok {
		return nil, nil
	}
	return &r, nil
}
