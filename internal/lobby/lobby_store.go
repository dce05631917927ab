// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// LobbyStore holds the live lobby of every identity in memory.
type LobbyStore struct {
	ctx  context.Context
	deps Deps
	log  logrus.FieldLogger

	mu       sync.Mutex
	lobbies  map[uuid.UUID]*Lobby
	lastSeen map[uuid.UUID]time.Time
}

// NewLobbyStore builds an empty store. Lobbies it creates run until closed or ctx is cancelled.
func NewLobbyStore(ctx context.Context, deps Deps) *LobbyStore {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &LobbyStore{
		ctx:      ctx,
		deps:     deps,
		log:      logger.WithField("component", "lobby_store"),
		lobbies:  make(map[uuid.UUID]*Lobby),
		lastSeen: make(map[uuid.UUID]time.Time),
	}
}

// GetOrCreate returns identity's lobby, creating and starting it on first use.
func (s *LobbyStore) GetOrCreate(identity uuid.UUID) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[identity] = s.deps.Clock.Now()
	if l, ok := s.lobbies[identity]; ok {
		return l
	}
	l := New(identity, s.deps)
	l.Start(s.ctx)
	s.lobbies[identity] = l
	s.log.WithField("identity", identity).Debug("lobby created")
	return l
}

// Get returns identity's lobby if it exists. A hit counts as activity.
func (s *LobbyStore) Get(identity uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[identity]
	if ok {
		s.lastSeen[identity] = s.deps.Clock.Now()
	}
	return l, ok
}

// Delete removes and closes identity's lobby. It reports whether one existed.
func (s *LobbyStore) Delete(identity uuid.UUID) bool {
	s.mu.Lock()
	l, ok := s.lobbies[identity]
	delete(s.lobbies, identity)
	delete(s.lastSeen, identity)
	s.mu.Unlock()

	if ok {
		l.Close()
		s.log.WithField("identity", identity).Debug("lobby deleted")
	}
	return ok
}

// Len returns the number of live lobbies.
func (s *LobbyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// CloseAll closes every lobby. Used on shutdown.
func (s *LobbyStore) CloseAll() {
	s.mu.Lock()
	lobbies := s.lobbies
	s.lobbies = make(map[uuid.UUID]*Lobby)
	s.lastSeen = make(map[uuid.UUID]time.Time)
	s.mu.Unlock()

	for _, l := range lobbies {
		l.Close()
	}
}

// EvictIdle closes lobbies not looked up for longer than maxIdle. Lobbies with a
// running session are kept. It returns how many were closed.
func (s *LobbyStore) EvictIdle(maxIdle time.Duration) int {
	now := s.deps.Clock.Now()
	var idle []*Lobby

	s.mu.Lock()
	for id, l := range s.lobbies {
		if now.Sub(s.lastSeen[id]) <= maxIdle || l.hasSession() {
			continue
		}
		idle = append(idle, l)
		delete(s.lobbies, id)
		delete(s.lastSeen, id)
	}
	s.mu.Unlock()

	for _, l := range idle {
		l.Close()
		s.log.WithField("identity", l.Identity).Debug("idle lobby evicted")
	}
	return len(idle)
}

// RunEviction calls EvictIdle every interval until ctx is cancelled.
func (s *LobbyStore) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := s.deps.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.EvictIdle(maxIdle); n > 0 {
				s.log.WithField("evicted", n).Info("evicted idle lobbies")
			}
		}
	}
}
