package elo

import "fmt"

// Outcome is the result of a single game seen from the first participant.
type Outcome string

// Supported outcomes
const (
	Win  Outcome = "win"
	Draw Outcome = "draw"
	Loss Outcome = "loss"
)

// ParseOutcome converts a token into an Outcome. Both the singular form and
// the plural tally form ("wins", "draws", "losses") are accepted, exactly as
// written.
func ParseOutcome(token string) (Outcome, error) {
	switch token {
	case "win", "wins":
		return Win, nil
	case "draw", "draws":
		return Draw, nil
	case "loss", "losses":
		return Loss, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, token)
}

// ParseOutcomes converts every token or fails without returning a partial slice.
func ParseOutcomes(tokens []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tokens))
	for i, token := range tokens {
		o, err := ParseOutcome(token)
		if err != nil {
			return nil, fmt.Errorf("outcome #%d: %w", i, err)
		}
		outcomes[i] = o
	}
	return outcomes, nil
}

// Valid reports whether o is one of the three known outcomes.
func (o Outcome) Valid() bool {
	return o == Win || o == Draw || o == Loss
}

// Score returns the actual score of the first participant: 1, 0.5 or 0.
func (o Outcome) Score() (float64, error) {
	switch o {
	case Win:
		return 1.0, nil
	case Draw:
		return 0.5, nil
	case Loss:
		return 0.0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, string(o))
}

// Invert returns the same result seen from the second participant.
func (o Outcome) Invert() Outcome {
	switch o {
	case Win:
		return Loss
	case Loss:
		return Win
	}
	return o
}

func (o Outcome) String() string {
	return string(o)
}
