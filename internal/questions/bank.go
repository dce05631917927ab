// internal/questions/bank.go
package questions

import (
	"fmt"
	"sort"
)

// DefaultLanguage is the fallback used when a round has no questions in the requested language.
const DefaultLanguage = "en"

// OptionKey identifies one of the four answer options.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// OptionKeys lists the valid keys in display order.
var OptionKeys = []OptionKey{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether k is one of A-D.
func (k OptionKey) Valid() bool {
	switch k {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question is one multiple-choice prompt.
type Question struct {
	ID      int                  `json:"id" yaml:"id"`
	Prompt  string               `json:"question" yaml:"question"`
	Options map[OptionKey]string `json:"options" yaml:"options"`
	Correct OptionKey            `json:"correctAnswer" yaml:"correct"`
	Hint    string               `json:"hint" yaml:"hint"`
}

// Validate checks a question has four options keyed A-D and a valid correct key.
func (q Question) Validate() error {
	if len(q.Options) != len(OptionKeys) {
		return fmt.Errorf("question %d: expected %d options, got %d", q.ID, len(OptionKeys), len(q.Options))
	}
	for _, k := range OptionKeys {
		if _, ok := q.Options[k]; !ok {
			return fmt.Errorf("question %d: missing option %s", q.ID, k)
		}
	}
	if !q.Correct.Valid() {
		return fmt.Errorf("question %d: invalid correct option %q", q.ID, q.Correct)
	}
	return nil
}

// Bank holds the question sequences keyed by round number and language code.
// A Bank is immutable after construction and safe for concurrent use.
type Bank struct {
	rounds map[int]map[string][]Question
}

// NewBank validates rounds and builds a Bank. Question IDs must be unique within
// each round/language sequence.
func NewBank(rounds map[int]map[string][]Question) (*Bank, error) {
	b := &Bank{rounds: make(map[int]map[string][]Question, len(rounds))}
	for round, langs := range rounds {
		if round < 1 {
			return nil, fmt.Errorf("round %d: round numbers start at 1", round)
		}
		b.rounds[round] = make(map[string][]Question, len(langs))
		for lang, qs := range langs {
			seen := make(map[int]bool, len(qs))
			for _, q := range qs {
				if seen[q.ID] {
					return nil, fmt.Errorf("round %d/%s: duplicate question id %d", round, lang, q.ID)
				}
				seen[q.ID] = true
				if err := q.Validate(); err != nil {
					return nil, fmt.Errorf("round %d/%s: %w", round, lang, err)
				}
			}
			b.rounds[round][lang] = append([]Question(nil), qs...)
		}
	}
	return b, nil
}

// Rounds returns how many rounds the bank defines.
func (b *Bank) Rounds() int {
	return len(b.rounds)
}

// RoundNumbers lists the defined rounds in ascending order.
func (b *Bank) RoundNumbers() []int {
	out := make([]int, 0, len(b.rounds))
	for r := range b.rounds {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Languages lists the languages a round defines, sorted.
func (b *Bank) Languages(round int) []string {
	langs := b.rounds[round]
	out := make([]string, 0, len(langs))
	for l := range langs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the play sequence for (round, language), falling back to
// DefaultLanguage. It returns nil when neither exists. The slice is a copy.
func (b *Bank) Resolve(round int, language string) []Question {
	langs, ok := b.rounds[round]
	if !ok {
		return nil
	}
	qs, ok := langs[language]
	if !ok || len(qs) == 0 {
		qs = langs[DefaultLanguage]
	}
	if len(qs) == 0 {
		return nil
	}
	return append([]Question(nil), qs...)
}
