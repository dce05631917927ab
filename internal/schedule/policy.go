package schedule

import (
	"fmt"
	"time"
)

// RoundMode selects how wall-clock slots map to question-bank rounds.
type RoundMode string

const (
	// RoundModeCycle walks through the defined rounds, one per 3-hour slot, wrapping.
	RoundModeCycle RoundMode = "cycle"
	// RoundModeFixed always plays the same round.
	RoundModeFixed RoundMode = "fixed"
)

// RoundPolicy resolves the round number played at a given instant.
type RoundPolicy struct {
	Mode RoundMode `yaml:"mode"`
	// Rounds is the modulus for RoundModeCycle. Zero means "however many the bank defines".
	Rounds int `yaml:"rounds"`
	// Fixed is the round played under RoundModeFixed.
	Fixed int `yaml:"fixed"`
}

// DefaultRoundPolicy cycles through every round the bank defines.
func DefaultRoundPolicy() RoundPolicy {
	return RoundPolicy{Mode: RoundModeCycle}
}

// Validate reports configuration mistakes.
func (p RoundPolicy) Validate() error {
	switch p.Mode {
	case RoundModeCycle, "":
		if p.Rounds < 0 {
			return fmt.Errorf("round policy: rounds must be non-negative, got %d", p.Rounds)
		}
	case RoundModeFixed:
		if p.Fixed < 1 {
			return fmt.Errorf("round policy: fixed round must be >= 1, got %d", p.Fixed)
		}
	default:
		return fmt.Errorf("round policy: unknown mode %q", p.Mode)
	}
	return nil
}

// Round returns the round number for now. defined is the number of rounds in the bank.
func (p RoundPolicy) Round(now time.Time, defined int) int {
	if p.Mode == RoundModeFixed {
		return p.Fixed
	}
	modulus := p.Rounds
	if modulus == 0 {
		modulus = defined
	}
	return CurrentRoundNumber(now, modulus)
}
