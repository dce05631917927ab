// internal/readiness/tracker.go
package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnauthenticated is returned when no identity is attached to the tracker.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrLanguageLocked is returned by ChangeLanguage while the player is ready.
	ErrLanguageLocked = errors.New("language cannot change while ready")
	// ErrEmptyLanguage is returned for a blank language code.
	ErrEmptyLanguage = errors.New("language code is empty")
)

// GatewayError wraps a failed call to the remote player store.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// PlayerStore is the part of the remote gateway the tracker needs.
type PlayerStore interface {
	AddPlayer(ctx context.Context, id uuid.UUID, language string) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// State is a copy of the tracker's view.
type State struct {
	Identity      uuid.UUID      `json:"identity"`
	Ready         bool           `json:"ready"`
	Language      string         `json:"language"`
	RoundEndReset bool           `json:"roundEndReset"`
	Stale         bool           `json:"stale"`
	Remote        *models.Player `json:"remote,omitempty"`
}

// Tracker reconciles a player's local readiness with the remote record.
//
// The remote store can only upsert ready=true, so the end-of-round reset is a
// local override: while roundEndReset is set the player reads as not ready no
// matter what the last remote snapshot says. Only a successful Register clears it.
type Tracker struct {
	identity uuid.UUID
	store    PlayerStore
	log      logrus.FieldLogger

	mu               sync.Mutex
	selectedLanguage string
	roundEndReset    bool
	remote           *models.Player
	stale            bool
	// gen counts local confirmations. A poll started under an older gen is dropped.
	gen uint64
}

// New builds a tracker for identity. A nil identity makes every remote operation fail with ErrUnauthenticated.
func New(identity uuid.UUID, store PlayerStore, logger logrus.FieldLogger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tracker{
		identity:         identity,
		store:            store,
		log:              logger.WithField("identity", identity),
		selectedLanguage: questions.DefaultLanguage,
		stale:            true,
	}
}

// Register marks the player ready with language. Local state only changes once
// the remote upsert succeeds.
func (t *Tracker) Register(ctx context.Context, language string) error {
	if t.identity == uuid.Nil {
		return ErrUnauthenticated
	}
	if language == "" {
		return ErrEmptyLanguage
	}
	if err := t.store.AddPlayer(ctx, t.identity, language); err != nil {
		t.log.WithError(err).Warn("failed to register readiness")
		return &GatewayError{Op: "addPlayer", Err: err}
	}

	t.mu.Lock()
	t.roundEndReset = false
	t.selectedLanguage = language
	t.remote = &models.Player{ID: t.identity, Language: language, Ready: true}
	t.stale = true
	t.gen++
	t.mu.Unlock()

	t.log.WithField("language", language).Info("player ready")
	return nil
}

// IsReady is false while the round-end override is set, otherwise the remote ready flag.
func (t *Tracker) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isReadyUnsafe()
}

func (t *Tracker) isReadyUnsafe() bool {
	if t.roundEndReset {
		return false
	}
	return t.remote != nil && t.remote.Ready
}

// ChangeLanguage sets the language for the next registration. Rejected while ready.
func (t *Tracker) ChangeLanguage(code string) error {
	if code == "" {
		return ErrEmptyLanguage
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isReadyUnsafe() {
		return ErrLanguageLocked
	}
	t.selectedLanguage = code
	return nil
}

// Language returns the selected language.
func (t *Tracker) Language() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedLanguage
}

// OnSessionEnd sets the round-end override, resets the language and marks the
// remote snapshot stale so the next poll rereads it.
func (t *Tracker) OnSessionEnd() {
	t.mu.Lock()
	t.roundEndReset = true
	t.selectedLanguage = questions.DefaultLanguage
	t.stale = true
	t.gen++
	t.mu.Unlock()

	t.log.Debug("round-end reset applied")
}

// ApplySnapshot folds a polled remote record into local state. Re-applying the
// same record is a no-op. Records for other identities are ignored.
func (t *Tracker) ApplySnapshot(p *models.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyUnsafe(p)
}

func (t *Tracker) applyUnsafe(p *models.Player) {
	t.stale = false
	if p == nil {
		t.remote = nil
		return
	}
	if p.ID != t.identity {
		return
	}
	cp := *p
	t.remote = &cp
	if cp.Ready && !t.roundEndReset {
		t.selectedLanguage = cp.Language
	}
}

// Refresh reads the remote record and applies it. On failure state is unchanged.
// A read that was in flight across a Register or OnSessionEnd is discarded and
// the tracker stays stale, so the next poll rereads it.
func (t *Tracker) Refresh(ctx context.Context) error {
	if t.identity == uuid.Nil {
		return ErrUnauthenticated
	}
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()

	p, err := t.store.GetPlayer(ctx, t.identity)
	if err != nil {
		return &GatewayError{Op: "getPlayer", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		t.log.Debug("dropping readiness snapshot read before a local change")
		return nil
	}
	t.applyUnsafe(p)
	return nil
}

// Stale reports whether the remote snapshot should be reread before it is trusted.
func (t *Tracker) Stale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stale
}

// State returns a copy of the tracker's view.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := State{
		Identity:      t.identity,
		Ready:         t.isReadyUnsafe(),
		Language:      t.selectedLanguage,
		RoundEndReset: t.roundEndReset,
		Stale:         t.stale,
	}
	if t.remote != nil {
		cp := *t.remote
		st.Remote = &cp
	}
	return st
}
