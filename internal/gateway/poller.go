package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// PlayersPoller keeps a periodically refreshed snapshot of every player.
// Readers get the last successful snapshot; failed polls keep the previous one.
type PlayersPoller struct {
	gw       Gateway
	clock    clockwork.Clock
	interval time.Duration
	log      logrus.FieldLogger

	mu        sync.RWMutex
	players   []models.Player
	fetchedAt time.Time

	wakeCh chan struct{}
}

// NewPlayersPoller builds a poller that refreshes every interval once Run is called.
func NewPlayersPoller(gw Gateway, clock clockwork.Clock, interval time.Duration, logger logrus.FieldLogger) *PlayersPoller {
	return &PlayersPoller{
		gw:       gw,
		clock:    clock,
		interval: interval,
		log:      logger.WithField("component", "players_poller"),
		wakeCh:   make(chan struct{}, 1),
	}
}

// Run polls until ctx is cancelled.
func (p *PlayersPoller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.poll(ctx)
		case <-p.wakeCh:
			p.poll(ctx)
		}
	}
}

func (p *PlayersPoller) poll(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		p.log.WithError(err).Warn("player poll failed; keeping previous snapshot")
	}
}

// Refresh fetches a new snapshot now.
func (p *PlayersPoller) Refresh(ctx context.Context) error {
	players, err := p.gw.GetAllPlayers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch players: %w", err)
	}
	p.mu.Lock()
	p.players = players
	p.fetchedAt = p.clock.Now()
	p.mu.Unlock()
	return nil
}

// Invalidate asks the running poller to refetch without waiting for the next interval.
func (p *PlayersPoller) Invalidate() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Players returns a copy of the last snapshot and when it was taken.
func (p *PlayersPoller) Players() ([]models.Player, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.Player(nil), p.players...), p.fetchedAt
}

// Ready returns the ready players from the last snapshot.
func (p *PlayersPoller) Ready() []models.Player {
	players, _ := p.Players()
	return ReadyPlayers(players)
}
