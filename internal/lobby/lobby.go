// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/events"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/jason-s-yu/trivia/internal/readiness"
	"github.com/jason-s-yu/trivia/internal/schedule"
	"github.com/jason-s-yu/trivia/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotReady is returned by ForceStart when the player has not registered for the round.
	ErrNotReady = errors.New("player is not ready")
	// ErrNoSession is returned for session input while no session is running.
	ErrNoSession = errors.New("no session in progress")
	// ErrSessionActive is returned when a session is already running.
	ErrSessionActive = errors.New("session already in progress")
	// ErrClosed is returned by every operation on a closed lobby.
	ErrClosed = errors.New("lobby closed")
)

// Deps are the collaborators shared by every lobby.
type Deps struct {
	Gateway   gateway.Gateway
	Bank      *questions.Bank
	Players   *gateway.PlayersPoller
	Publisher events.Publisher
	Clock     clockwork.Clock
	Logger    logrus.FieldLogger

	Session    session.Config
	Policy     schedule.RoundPolicy
	PlayerPoll time.Duration
}

// View is what a polling client sees of its lobby.
type View struct {
	Identity         uuid.UUID          `json:"identity"`
	Readiness        readiness.State    `json:"readiness"`
	Boundary         time.Time          `json:"boundary"`
	Remaining        schedule.Remaining `json:"remaining"`
	RemainingSeconds int64              `json:"remainingSeconds"`
	Round            int                `json:"round"`
	ForceStart       bool               `json:"forceStart"`
	SessionActive    bool               `json:"sessionActive"`
	ReadyPlayers     []models.Player    `json:"readyPlayers"`
	PlayersAsOf      time.Time          `json:"playersAsOf"`
	LastResult       *session.Result    `json:"lastResult,omitempty"`
}

// Lobby coordinates one identity's countdown, readiness and session.
//
// The countdown asks the tracker at every boundary whether to start a session;
// the session reports back when it finishes, which resets readiness until the
// player registers again.
type Lobby struct {
	Identity uuid.UUID

	deps      Deps
	log       logrus.FieldLogger
	tracker   *readiness.Tracker
	countdown *schedule.Countdown

	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	closed        bool
	forceStart    bool
	current       *session.Session
	sessionCancel context.CancelFunc
	lastResult    *session.Result

	// wakeCh asks the readiness poll to reread now instead of on its next tick.
	wakeCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a stopped lobby for identity.
func New(identity uuid.UUID, deps Deps) *Lobby {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.PlayerPoll <= 0 {
		deps.PlayerPoll = 3 * time.Second
	}
	log := deps.Logger.WithField("identity", identity)
	l := &Lobby{
		Identity: identity,
		deps:     deps,
		log:      log,
		tracker:  readiness.New(identity, deps.Gateway, log),
		wakeCh:   make(chan struct{}, 1),
	}
	l.countdown = schedule.NewCountdown(deps.Clock, l.onTick, l.onBoundary)
	return l
}

// Start launches the countdown and the readiness poll. They run until Close or ctx is cancelled.
func (l *Lobby) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.closed {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.ctx, l.cancel = context.WithCancel(ctx)
	lctx := l.ctx
	l.mu.Unlock()

	ticker := l.deps.Clock.NewTicker(l.deps.PlayerPoll)
	l.wg.Add(1)
	go l.pollLoop(lctx, ticker)
	l.countdown.Start(lctx)
}

func (l *Lobby) pollLoop(ctx context.Context, ticker clockwork.Ticker) {
	defer l.wg.Done()
	defer ticker.Stop()
	l.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.refresh(ctx)
		case <-l.wakeCh:
			l.refresh(ctx)
		}
	}
}

func (l *Lobby) refresh(ctx context.Context) {
	if err := l.tracker.Refresh(ctx); err != nil && ctx.Err() == nil {
		l.log.WithError(err).Warn("readiness poll failed")
	}
}

func (l *Lobby) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Lobby) onTick(time.Time, time.Duration) {
	l.mu.Lock()
	armed := l.forceStart && l.current == nil && !l.closed
	l.mu.Unlock()
	if armed && l.tracker.IsReady() {
		if err := l.startSession("force_start"); err != nil && !errors.Is(err, session.ErrNoQuestionsAvailable) {
			l.log.WithError(err).Debug("forced start skipped")
		}
	}
}

func (l *Lobby) onBoundary(boundary time.Time) {
	if !l.tracker.IsReady() {
		l.log.WithField("boundary", boundary).Debug("round boundary reached; player not ready")
		return
	}
	if err := l.startSession("boundary"); err != nil && !errors.Is(err, session.ErrNoQuestionsAvailable) {
		l.log.WithError(err).Warn("failed to start session at boundary")
	}
}

// Register marks the player ready in language.
func (l *Lobby) Register(ctx context.Context, language string) error {
	if l.isClosed() {
		return ErrClosed
	}
	if err := l.tracker.Register(ctx, language); err != nil {
		return err
	}
	l.wake()
	if l.deps.Players != nil {
		l.deps.Players.Invalidate()
	}
	events.Emit(ctx, l.deps.Publisher, l.log, events.PlayerReady, l.Identity,
		map[string]string{"language": language}, l.deps.Clock.Now())
	return nil
}

// ChangeLanguage sets the language used by the next registration.
func (l *Lobby) ChangeLanguage(code string) error {
	if l.isClosed() {
		return ErrClosed
	}
	return l.tracker.ChangeLanguage(code)
}

// ForceStart starts a session now instead of at the next boundary. The request
// stays armed until a session ends, so a player who is not ready yet gets
// ErrNotReady and starts on the first tick after registering.
func (l *Lobby) ForceStart() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.current != nil {
		l.mu.Unlock()
		return ErrSessionActive
	}
	l.forceStart = true
	l.mu.Unlock()

	if !l.tracker.IsReady() {
		return ErrNotReady
	}
	return l.startSession("force_start")
}

// startSession resolves the round and its questions and launches the session.
// With nothing to play it records an empty result and ends the round straight away.
func (l *Lobby) startSession(trigger string) error {
	l.mu.Lock()
	if l.closed || l.ctx == nil {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.current != nil {
		l.mu.Unlock()
		return ErrSessionActive
	}

	now := l.deps.Clock.Now()
	language := l.tracker.Language()
	round := l.deps.Policy.Round(now, l.deps.Bank.Rounds())
	log := l.log.WithFields(logrus.Fields{"round": round, "language": language, "trigger": trigger})

	sess, err := session.New(session.Params{
		Round:     round,
		Language:  language,
		Questions: l.deps.Bank.Resolve(round, language),
		Config:    l.deps.Session,
		Clock:     l.deps.Clock,
		Logger:    l.log,
		OnFinish:  l.onSessionFinished,
	})
	if err != nil {
		res := session.Result{Round: round, Language: language, NoQuestions: true, FinishedAt: now}
		l.lastResult = &res
		l.forceStart = false
		l.mu.Unlock()

		log.WithError(err).Warn("no session started")
		l.endRound(res)
		return err
	}

	ctx, cancel := context.WithCancel(l.ctx)
	l.current = sess
	l.sessionCancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	log.WithField("session_id", sess.ID).Info("session starting")
	go l.runSession(ctx, sess)
	return nil
}

func (l *Lobby) runSession(ctx context.Context, sess *session.Session) {
	defer l.wg.Done()
	if _, err := sess.Run(ctx); err != nil {
		l.log.WithError(err).WithField("session_id", sess.ID).Info("session discarded")
	}

	l.mu.Lock()
	if l.current == sess {
		l.current = nil
		l.sessionCancel = nil
	}
	l.mu.Unlock()
}

// onSessionFinished runs once per session, on the session's own goroutine.
func (l *Lobby) onSessionFinished(res session.Result) {
	l.mu.Lock()
	l.lastResult = &res
	l.forceStart = false
	l.current = nil
	l.sessionCancel = nil
	l.mu.Unlock()

	l.endRound(res)
}

// endRound applies the round-end reset and has both the player's record and the
// shared player list reread.
func (l *Lobby) endRound(res session.Result) {
	l.tracker.OnSessionEnd()
	l.wake()
	if l.deps.Players != nil {
		l.deps.Players.Invalidate()
	}
	events.Emit(context.Background(), l.deps.Publisher, l.log, events.SessionFinished, l.Identity, res, l.deps.Clock.Now())
}

// Select answers the current question.
func (l *Lobby) Select(key questions.OptionKey) error {
	sess, err := l.session()
	if err != nil {
		return err
	}
	return sess.Select(key)
}

// ToggleHint flips hint visibility for the current question.
func (l *Lobby) ToggleHint() (bool, error) {
	sess, err := l.session()
	if err != nil {
		return false, err
	}
	return sess.ToggleHint()
}

// Session returns a snapshot of the running session.
func (l *Lobby) Session() (session.Snapshot, error) {
	sess, err := l.session()
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (l *Lobby) session() (*session.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.current == nil {
		return nil, ErrNoSession
	}
	return l.current, nil
}

// Readiness returns the tracker state.
func (l *Lobby) Readiness() readiness.State {
	return l.tracker.State()
}

// LastResult returns the most recent session outcome.
func (l *Lobby) LastResult() (session.Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastResult == nil {
		return session.Result{}, false
	}
	return *l.lastResult, true
}

// View assembles the polling view.
func (l *Lobby) View() View {
	now := l.deps.Clock.Now()
	boundary := l.countdown.Target()
	remaining := boundary.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	v := View{
		Identity:         l.Identity,
		Readiness:        l.tracker.State(),
		Boundary:         boundary,
		Remaining:        schedule.Split(remaining),
		RemainingSeconds: int64(remaining / time.Second),
		Round:            l.deps.Policy.Round(now, l.deps.Bank.Rounds()),
		ReadyPlayers:     []models.Player{},
	}
	if l.deps.Players != nil {
		players, asOf := l.deps.Players.Players()
		v.ReadyPlayers = gateway.ReadyPlayers(players)
		v.PlayersAsOf = asOf
	}

	l.mu.Lock()
	v.ForceStart = l.forceStart
	v.SessionActive = l.current != nil
	if l.lastResult != nil {
		res := *l.lastResult
		v.LastResult = &res
	}
	l.mu.Unlock()
	return v
}

func (l *Lobby) hasSession() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current != nil
}

func (l *Lobby) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops the timers and abandons a running session. Safe to call more than once.
func (l *Lobby) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.forceStart = false
	cancel := l.cancel
	if l.sessionCancel != nil {
		l.sessionCancel()
	}
	l.mu.Unlock()

	// Stop waits for an in-flight tick, which may need the lobby lock.
	l.countdown.Stop()
	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	l.log.Debug("lobby closed")
}
