package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/trivia/internal/questions"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// finishRecorder counts OnFinish invocations.
type finishRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (fr *finishRecorder) onFinish(r Result) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	fr.results = append(fr.results, r)
}

func (fr *finishRecorder) calls() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return len(fr.results)
}

func makeQuestions(n int) []questions.Question {
	keys := questions.OptionKeys
	qs := make([]questions.Question, n)
	for i := range qs {
		qs[i] = questions.Question{
			ID:     100 + i,
			Prompt: "question",
			Options: map[questions.OptionKey]string{
				questions.OptionA: "a", questions.OptionB: "b",
				questions.OptionC: "c", questions.OptionD: "d",
			},
			Correct: keys[i%len(keys)],
			Hint:    "hint",
		}
	}
	return qs
}

// setupTestSession builds a session over n questions on a fake clock.
func setupTestSession(t *testing.T, n int, cfg Config) (*Session, *clockwork.FakeClock, *finishRecorder) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	fr := &finishRecorder{}
	s, err := New(Params{
		Round:     1,
		Language:  "en",
		Questions: makeQuestions(n),
		Config:    cfg,
		Clock:     fc,
		OnFinish:  fr.onFinish,
	})
	require.NoError(t, err)
	return s, fc, fr
}

func TestNewWithoutQuestions(t *testing.T) {
	s, err := New(Params{Round: 1, Language: "xx"})
	assert.ErrorIs(t, err, ErrNoQuestionsAvailable)
	assert.Nil(t, s)
}

func TestAllCorrectScoresFull(t *testing.T) {
	s, _, fr := setupTestSession(t, 15, DefaultConfig())
	qs := makeQuestions(15)

	for i, q := range qs {
		require.Equal(t, StateActive, s.State())
		require.Equal(t, i, s.Snapshot().Index)
		require.NoError(t, s.Select(q.Correct))
		require.Equal(t, StateLocked, s.State())
		res, done := s.Continue()
		assert.Equal(t, i == len(qs)-1, done)
		if done {
			assert.Equal(t, 15, res.Score)
			assert.Equal(t, 15, res.Total)
		}
	}

	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, 1, fr.calls())

	answers := s.Answers()
	require.Len(t, answers, len(qs))
	for i := range qs {
		assert.Equal(t, qs[i].ID, answers[i].QuestionID)
		assert.True(t, answers[i].Correct)
	}

	// finished sessions accept nothing and never report twice
	assert.ErrorIs(t, s.Select(questions.OptionA), ErrFinished)
	_, done := s.Continue()
	assert.False(t, done)
	assert.Equal(t, 1, fr.calls())
}

func TestTimeoutRecordsNullAnswer(t *testing.T) {
	s, _, _ := setupTestSession(t, 2, DefaultConfig())

	for i := 0; i < 14; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.Equal(t, 1, snap.TimeLeft)

	s.Tick()
	snap = s.Snapshot()
	assert.Equal(t, StateLocked, snap.State)
	assert.Equal(t, 0, snap.TimeLeft)

	answers := s.Answers()
	require.Len(t, answers, 1)
	assert.Nil(t, answers[0].Option)
	assert.False(t, answers[0].Correct)

	// a click that arrives after the timer hit zero loses
	assert.ErrorIs(t, s.Select(questions.OptionA), ErrAnswerLocked)
	assert.Len(t, s.Answers(), 1)
}

func TestLockIsOneWay(t *testing.T) {
	s, _, _ := setupTestSession(t, 3, DefaultConfig())
	qs := makeQuestions(3)

	wrong := questions.OptionD
	require.NotEqual(t, wrong, qs[0].Correct)
	require.NoError(t, s.Select(wrong))

	before := s.Answers()
	assert.ErrorIs(t, s.Select(qs[0].Correct), ErrAnswerLocked)
	for i := 0; i < 30; i++ {
		s.Tick()
	}
	_, err := s.ToggleHint()
	assert.ErrorIs(t, err, ErrAnswerLocked)
	assert.Equal(t, before, s.Answers())
	require.Len(t, before, 1)
	assert.Equal(t, wrong, *before[0].Option)
	assert.False(t, before[0].Correct)
}

func TestSelectStopsCountdown(t *testing.T) {
	s, _, _ := setupTestSession(t, 2, DefaultConfig())

	for i := 0; i < 6; i++ {
		s.Tick()
	}
	require.Equal(t, 9, s.Snapshot().TimeLeft)
	require.NoError(t, s.Select(questions.OptionB))

	for i := 0; i < 5; i++ {
		s.Tick()
	}
	assert.Equal(t, 9, s.Snapshot().TimeLeft)
}

func TestSelectRejectsUnknownOption(t *testing.T) {
	s, _, _ := setupTestSession(t, 1, DefaultConfig())
	assert.ErrorIs(t, s.Select("E"), ErrInvalidOption)
	assert.Equal(t, StateActive, s.State())
	assert.Empty(t, s.Answers())
}

func TestHintToggle(t *testing.T) {
	s, _, _ := setupTestSession(t, 2, DefaultConfig())

	assert.Empty(t, s.Snapshot().Question.Hint)

	visible, err := s.ToggleHint()
	require.NoError(t, err)
	assert.True(t, visible)
	assert.Equal(t, "hint", s.Snapshot().Question.Hint)

	visible, err = s.ToggleHint()
	require.NoError(t, err)
	assert.False(t, visible)
	assert.False(t, s.Snapshot().HintVisible)

	// hint state does not carry over to the next question
	_, _ = s.ToggleHint()
	require.NoError(t, s.Select(questions.OptionA))
	s.Continue()
	snap := s.Snapshot()
	assert.False(t, snap.HintVisible)
	assert.Nil(t, snap.Selected)
	assert.Equal(t, 15, snap.TimeLeft)
}

func TestSnapshotHidesAnswerUntilLocked(t *testing.T) {
	s, _, _ := setupTestSession(t, 1, DefaultConfig())
	assert.Nil(t, s.Snapshot().Question.Correct)

	require.NoError(t, s.Select(questions.OptionA))
	snap := s.Snapshot()
	require.NotNil(t, snap.Question.Correct)
	assert.Equal(t, questions.OptionA, *snap.Question.Correct)
	assert.Equal(t, 1, snap.Score)
}

func TestRunAdvancesAfterReveal(t *testing.T) {
	s, fc, fr := setupTestSession(t, 2, DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type runResult struct {
		res Result
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		res, err := s.Run(ctx)
		done <- runResult{res, err}
	}()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	require.NoError(t, s.Select(questions.OptionA)) // correct for question 0
	require.Eventually(t, func() bool {
		fc.Advance(250 * time.Millisecond)
		return s.Snapshot().Index == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Select(questions.OptionA)) // question 1 expects B
	require.Eventually(t, func() bool {
		fc.Advance(250 * time.Millisecond)
		return s.State() == StateFinished
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case rr := <-done:
		require.NoError(t, rr.err)
		assert.Equal(t, 1, rr.res.Score)
		assert.Equal(t, 2, rr.res.Total)
	case <-ctx.Done():
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 1, fr.calls())

	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunTimesOutUnansweredQuestions(t *testing.T) {
	cfg := Config{QuestionTime: 2 * time.Second, RevealDelay: 0}
	s, fc, fr := setupTestSession(t, 1, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go s.Run(ctx)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	require.Eventually(t, func() bool {
		fc.Advance(time.Second)
		return s.State() == StateFinished
	}, 2*time.Second, 5*time.Millisecond)

	res, ok := s.Result()
	require.True(t, ok)
	require.Len(t, res.Answers, 1)
	assert.Nil(t, res.Answers[0].Option)
	assert.Equal(t, 0, res.Score)
	require.Eventually(t, func() bool { return fr.calls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRunHoldsTimerWhileLocked(t *testing.T) {
	cfg := Config{QuestionTime: 15 * time.Second, RevealDelay: time.Hour}
	s, fc, _ := setupTestSession(t, 2, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	for want := 14; want >= 9; want-- {
		fc.Advance(time.Second)
		require.Eventually(t, func() bool { return s.Snapshot().TimeLeft == want }, time.Second, 2*time.Millisecond)
	}
	require.NoError(t, s.Select(questions.OptionB))

	for i := 0; i < 5; i++ {
		fc.Advance(time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, StateLocked, snap.State)
	assert.Equal(t, 9, snap.TimeLeft)
}

func TestRunAbandoned(t *testing.T) {
	s, fc, fr := setupTestSession(t, 3, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx)
		errCh <- err
	}()
	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, 0, fr.calls())
	_, ok := s.Result()
	assert.False(t, ok)
}
