package verification

import (
	"errors"
	"math"
)

// DefaultMatchThreshold is the maximum euclidean distance between two face
// descriptors still considered the same person.
const DefaultMatchThreshold = 0.6

var ErrDescriptorMismatch = errors.New("face descriptors have different lengths")

// MatchResult is the outcome of comparing two face descriptors.
type MatchResult struct {
	Match      bool    `json:"match"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// Matcher compares face descriptors produced by the client-side extraction
// pipeline. It is an explicit capability: constructed once per process and
// passed into the handlers that need it, rather than a lazily initialised
// package global.
type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Matcher{threshold: threshold}
}

// Compare measures the euclidean distance between two descriptors.
// Confidence is 1 - distance, clamped to [0, 1].
func (m *Matcher) Compare(reference, captured []float64) (MatchResult, error) {
	if len(reference) == 0 || len(captured) == 0 || len(reference) != len(captured) {
		return MatchResult{}, ErrDescriptorMismatch
	}
	var sum float64
	for i := range reference {
		d := reference[i] - captured[i]
		sum += d * d
	}
	distance := math.Sqrt(sum)
	confidence := 1 - distance
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return MatchResult{
		Match:      distance <= m.threshold,
		Distance:   distance,
		Confidence: confidence,
	}, nil
}
