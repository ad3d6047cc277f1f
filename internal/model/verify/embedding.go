package verify

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two embeddings cannot be compared:
// their lengths differ, or either is empty. The embedding model produces a
// fixed nonzero length, so this guards against malformed client input
// rather than expected traffic.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Distance computes the Euclidean distance between two non-empty embeddings
// of equal length. Lower means more similar; distance of a vector to itself
// is 0.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrDimensionMismatch
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Matched reports whether a distance clears the match threshold.
func Matched(distance, threshold float64) bool {
	return distance < threshold
}
