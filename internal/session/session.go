// internal/session/session.go
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoQuestionsAvailable means the round has nothing to play in the requested language or in English.
	ErrNoQuestionsAvailable = errors.New("no questions available for this round")
	// ErrAnswerLocked is returned for input arriving after the current question was locked.
	ErrAnswerLocked = errors.New("answer already locked for this question")
	// ErrInvalidOption is returned for answers outside A-D.
	ErrInvalidOption = errors.New("invalid answer option")
	// ErrFinished is returned for input arriving after the last question.
	ErrFinished = errors.New("session already finished")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("session already running")
)

// State is the phase of the current question.
type State string

const (
	StateActive   State = "active"
	StateLocked   State = "locked"
	StateFinished State = "finished"
)

// Config holds the session timings.
type Config struct {
	// QuestionTime is the per-question countdown, in whole seconds.
	QuestionTime time.Duration `yaml:"question_time"`
	// RevealDelay is how long a locked answer stays on screen before advancing.
	RevealDelay time.Duration `yaml:"reveal_delay"`
}

// DefaultConfig returns 15s per question and a 1.5s reveal.
func DefaultConfig() Config {
	return Config{
		QuestionTime: 15 * time.Second,
		RevealDelay:  1500 * time.Millisecond,
	}
}

// Answer is the recorded outcome of one question. Option is nil on timeout.
type Answer struct {
	QuestionID int                  `json:"questionId"`
	Option     *questions.OptionKey `json:"answer"`
	Correct    bool                 `json:"correct"`
}

// Result is reported once when a session ends.
type Result struct {
	SessionID   uuid.UUID `json:"sessionId"`
	Round       int       `json:"round"`
	Language    string    `json:"language"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Answers     []Answer  `json:"answers"`
	NoQuestions bool      `json:"noQuestions"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// FinishFunc receives the result when the last question has been revealed.
type FinishFunc func(Result)

// Params configures a new Session.
type Params struct {
	Round     int
	Language  string
	Questions []questions.Question
	Config    Config
	Clock     clockwork.Clock
	Logger    logrus.FieldLogger
	OnFinish  FinishFunc
}

// Session is a single playthrough of a round's question sequence.
//
// Active(i) -> Locked(i) -> Active(i+1) | Finished. The lock is a one-way
// latch per question: the first of Select or the timer reaching zero wins.
type Session struct {
	ID       uuid.UUID
	Round    int
	Language string

	cfg      Config
	clock    clockwork.Clock
	log      logrus.FieldLogger
	onFinish FinishFunc

	mu          sync.Mutex
	questions   []questions.Question
	index       int
	timeLeft    int
	selected    *questions.OptionKey
	hintVisible bool
	state       State
	answers     []Answer
	result      *Result
	running     bool

	// lockedCh wakes Run when a question locks
	lockedCh chan struct{}
}

// New builds a session at Active(0). It returns ErrNoQuestionsAvailable when
// the sequence is empty; the state machine is never entered in that case.
func New(p Params) (*Session, error) {
	if len(p.Questions) == 0 {
		return nil, ErrNoQuestionsAvailable
	}
	cfg := p.Config
	if cfg.QuestionTime < time.Second {
		cfg.QuestionTime = DefaultConfig().QuestionTime
	}
	if cfg.RevealDelay < 0 {
		cfg.RevealDelay = 0
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	id := uuid.New()
	s := &Session{
		ID:        id,
		Round:     p.Round,
		Language:  p.Language,
		cfg:       cfg,
		clock:     clock,
		onFinish:  p.OnFinish,
		questions: append([]questions.Question(nil), p.Questions...),
		state:     StateActive,
		answers:   make([]Answer, 0, len(p.Questions)),
		lockedCh:  make(chan struct{}, 1),
		log: logger.WithFields(logrus.Fields{
			"session_id": id,
			"round":      p.Round,
		}),
	}
	s.timeLeft = s.questionSeconds()
	return s, nil
}

func (s *Session) questionSeconds() int {
	return int(s.cfg.QuestionTime / time.Second)
}

// Tick advances the per-question countdown by one second. At zero an unlocked
// question is auto-submitted with no answer. Ticks outside Active are ignored.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}
	s.timeLeft--
	if s.timeLeft <= 0 {
		s.timeLeft = 0
		s.lockUnsafe(nil)
	}
}

// Select submits key for the current question and locks it.
func (s *Session) Select(key questions.OptionKey) error {
	if !key.Valid() {
		return ErrInvalidOption
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateFinished:
		return ErrFinished
	case StateLocked:
		return ErrAnswerLocked
	}
	s.selected = &key
	s.lockUnsafe(&key)
	return nil
}

// lockUnsafe records the answer for the current question. Assumes lock is held and state is Active.
func (s *Session) lockUnsafe(key *questions.OptionKey) {
	q := s.questions[s.index]
	correct := key != nil && *key == q.Correct
	s.answers = append(s.answers, Answer{
		QuestionID: q.ID,
		Option:     key,
		Correct:    correct,
	})
	s.state = StateLocked

	fields := logrus.Fields{"question_id": q.ID, "correct": correct, "time_left": s.timeLeft}
	if key == nil {
		s.log.WithFields(fields).Debug("question timed out")
	} else {
		s.log.WithFields(fields).WithField("answer", *key).Debug("answer locked")
	}

	select {
	case s.lockedCh <- struct{}{}:
	default:
	}
}

// Continue leaves Locked after the reveal delay. It moves to the next question
// or, after the last one, to Finished and reports the result. The bool is true
// when the session finished during this call.
func (s *Session) Continue() (Result, bool) {
	s.mu.Lock()
	if s.state != StateLocked {
		s.mu.Unlock()
		return Result{}, false
	}

	if s.index == len(s.questions)-1 {
		s.state = StateFinished
		res := s.buildResultUnsafe()
		s.result = &res
		onFinish := s.onFinish
		s.mu.Unlock()

		s.log.WithFields(logrus.Fields{"score": res.Score, "total": res.Total}).Info("session finished")
		if onFinish != nil {
			onFinish(res)
		}
		return res, true
	}

	s.index++
	s.timeLeft = s.questionSeconds()
	s.selected = nil
	s.hintVisible = false
	s.state = StateActive
	s.mu.Unlock()
	return Result{}, false
}

func (s *Session) buildResultUnsafe() Result {
	score := 0
	for _, a := range s.answers {
		if a.Correct {
			score++
		}
	}
	return Result{
		SessionID:  s.ID,
		Round:      s.Round,
		Language:   s.Language,
		Score:      score,
		Total:      len(s.questions),
		Answers:    append([]Answer(nil), s.answers...),
		FinishedAt: s.clock.Now(),
	}
}

// ToggleHint flips hint visibility for the current question. Disabled once the question is locked.
func (s *Session) ToggleHint() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateFinished:
		return s.hintVisible, ErrFinished
	case StateLocked:
		return s.hintVisible, ErrAnswerLocked
	}
	s.hintVisible = !s.hintVisible
	return s.hintVisible, nil
}

// Run drives the session timers until it finishes or ctx is cancelled.
// A cancelled session is abandoned: OnFinish is not called and ctx.Err() is returned.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.running || s.state == StateFinished {
		s.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.log.WithField("questions", len(s.questions)).Info("session started")

	ticker := s.clock.NewTicker(time.Second)
	defer func() { ticker.Stop() }()

	var reveal clockwork.Timer
	var revealCh <-chan time.Time
	defer func() {
		if reveal != nil {
			reveal.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("session abandoned")
			return Result{}, ctx.Err()
		case <-ticker.Chan():
			s.Tick()
		case <-s.lockedCh:
			// the countdown stops the moment the answer locks
			ticker.Stop()
			reveal = s.clock.NewTimer(s.cfg.RevealDelay)
			revealCh = reveal.Chan()
		case <-revealCh:
			revealCh = nil
			if res, done := s.Continue(); done {
				return res, nil
			}
			ticker = s.clock.NewTicker(time.Second)
		}
	}
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Answer(nil), s.answers...)
}

// Result returns the final result once Finished.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}
