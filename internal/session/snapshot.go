package session

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/questions"
)

// QuestionView is the client-facing form of the current question.
// Correct is only filled in once the question is locked; Hint only while visible.
type QuestionView struct {
	ID      int                            `json:"id"`
	Prompt  string                         `json:"question"`
	Options map[questions.OptionKey]string `json:"options"`
	Correct *questions.OptionKey           `json:"correctAnswer,omitempty"`
	Hint    string                         `json:"hint,omitempty"`
}

// Snapshot is a point-in-time view of a session for polling clients.
type Snapshot struct {
	ID          uuid.UUID            `json:"id"`
	Round       int                  `json:"round"`
	Language    string               `json:"language"`
	State       State                `json:"state"`
	Index       int                  `json:"index"`
	Total       int                  `json:"total"`
	TimeLeft    int                  `json:"timeLeft"`
	Question    *QuestionView        `json:"question,omitempty"`
	Selected    *questions.OptionKey `json:"selected,omitempty"`
	HintVisible bool                 `json:"hintVisible"`
	Answers     []Answer             `json:"answers"`
	Score       int                  `json:"score"`
	Result      *Result              `json:"result,omitempty"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		Round:       s.Round,
		Language:    s.Language,
		State:       s.state,
		Index:       s.index,
		Total:       len(s.questions),
		TimeLeft:    s.timeLeft,
		HintVisible: s.hintVisible,
		Answers:     append([]Answer(nil), s.answers...),
	}
	for _, a := range s.answers {
		if a.Correct {
			snap.Score++
		}
	}
	if s.selected != nil {
		sel := *s.selected
		snap.Selected = &sel
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	if s.state == StateFinished {
		return snap
	}

	q := s.questions[s.index]
	view := &QuestionView{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: make(map[questions.OptionKey]string, len(q.Options)),
	}
	for k, v := range q.Options {
		view.Options[k] = v
	}
	if s.state == StateLocked {
		correct := q.Correct
		view.Correct = &correct
	}
	if s.hintVisible {
		view.Hint = q.Hint
	}
	snap.Question = view
	return snap
}
