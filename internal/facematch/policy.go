package facematch

import (
	"fmt"

	"github.com/kozaktomas/lookout/internal/config"
)

// Policy turns a similarity score into a match decision.
type Policy struct {
	Threshold float64
}

// NewPolicy validates the threshold and returns a policy using it.
// NaN is rejected since no score would ever reach it.
func NewPolicy(threshold float64) (Policy, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return Policy{}, fmt.Errorf("%w: got %v", config.ErrInvalidThreshold, threshold)
	}
	return Policy{Threshold: threshold}, nil
}

// IsMatch reports whether score reaches the threshold.
func (p Policy) IsMatch(score float64) bool {
	return IsMatch(score, p.Threshold)
}

// IsMatch reports whether score >= threshold.
func IsMatch(score, threshold float64) bool {
	return score >= threshold
}
