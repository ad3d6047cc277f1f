// Package extract talks to the external face-embedding sidecar. The model
// itself is a black box that turns an image into a fixed-length vector;
// nothing in this package inspects pixels.
package extract

import (
	"context"
	"errors"
)

var (
	// ErrNoFaceDetected is returned when the detector finds no face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrAmbiguousFace is returned when the detector finds more than one.
	ErrAmbiguousFace = errors.New("ambiguous face")
)

// Extractor produces a face embedding from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}
