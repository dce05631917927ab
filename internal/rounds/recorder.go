// internal/rounds/recorder.go
package rounds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/events"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/schedule"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Recorder writes a round to the gateway for every language with ready
// players each time a round boundary passes.
type Recorder struct {
	gw    gateway.Gateway
	clock clockwork.Clock
	pub   events.Publisher
	log   logrus.FieldLogger

	countdown *schedule.Countdown

	mu  sync.Mutex
	ctx context.Context
}

func NewRecorder(gw gateway.Gateway, clock clockwork.Clock, pub events.Publisher, logger logrus.FieldLogger) *Recorder {
	r := &Recorder{
		gw:    gw,
		clock: clock,
		pub:   pub,
		log:   logger.WithField("component", "round_recorder"),
	}
	r.countdown = schedule.NewCountdown(clock, nil, r.onBoundary)
	return r
}

// Start begins watching for boundaries.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	r.countdown.Start(ctx)
	r.log.WithField("next_boundary", r.countdown.Target()).Info("round recorder started")
}

// Stop halts the countdown.
func (r *Recorder) Stop() {
	r.countdown.Stop()
}

// NextBoundary is when the next round will be recorded.
func (r *Recorder) NextBoundary() time.Time {
	return r.countdown.Target()
}

func (r *Recorder) onBoundary(boundary time.Time) {
	r.mu.Lock()
	parent := r.ctx
	r.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	langs, err := r.Record(ctx)
	fields := logrus.Fields{"boundary": boundary, "languages": langs}
	if err != nil {
		r.log.WithFields(fields).WithError(err).Error("failed to record rounds")
		return
	}
	r.log.WithFields(fields).Info("rounds recorded")
}

// Record creates one round per language that has ready players and returns
// the languages it created. A failure for one language does not stop the others.
func (r *Recorder) Record(ctx context.Context) ([]string, error) {
	players, err := r.gw.GetAllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	counts := make(map[string]int)
	for _, p := range gateway.ReadyPlayers(players) {
		counts[p.Language]++
	}
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	var created []string
	var errs []error
	for _, lang := range langs {
		if err := r.gw.CreateRound(ctx, lang); err != nil {
			errs = append(errs, fmt.Errorf("create round for %s: %w", lang, err))
			continue
		}
		created = append(created, lang)
		events.Emit(ctx, r.pub, r.log, events.RoundCreated, uuid.Nil,
			map[string]any{"language": lang, "players": counts[lang]}, r.clock.Now())
	}
	return created, errors.Join(errs...)
}
