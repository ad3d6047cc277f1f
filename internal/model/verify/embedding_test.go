package verify_test

import (
	"errors"
	"math"
	"testing"

	verify "github.com/wenqianl/facegate/backend/internal/model/verify"
)

func TestDistanceIdentity(t *testing.T) {
	a := []float32{0.1, -0.5, 2.3, 0}

	d, err := verify.Distance(a, a)
	if err != nil {
		t.Fatalf("Distance err: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected zero distance to self, got %v", d)
	}
	if !verify.Matched(d, 0.6) {
		t.Fatal("expected zero distance to match under positive threshold")
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 9}

	ab, err := verify.Distance(a, b)
	if err != nil {
		t.Fatalf("Distance err: %v", err)
	}
	ba, err := verify.Distance(b, a)
	if err != nil {
		t.Fatalf("Distance err: %v", err)
	}
	if ab != ba {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	ref := []float32{0, 0, 0}

	near, err := verify.Distance(ref, []float32{0, 0, 0.1})
	if err != nil {
		t.Fatalf("Distance err: %v", err)
	}
	if math.Abs(near-0.1) > 1e-6 {
		t.Fatalf("expected distance ~0.1, got %v", near)
	}

	far, err := verify.Distance(ref, []float32{5, 5, 5})
	if err != nil {
		t.Fatalf("Distance err: %v", err)
	}
	if math.Abs(far-math.Sqrt(75)) > 1e-6 {
		t.Fatalf("expected distance ~8.66, got %v", far)
	}

	if !verify.Matched(near, 0.6) {
		t.Fatal("expected near vector to match")
	}
	if verify.Matched(far, 0.6) {
		t.Fatal("expected far vector not to match")
	}
}

func TestDistanceDimensionMismatch(t *testing.T) {
	if _, err := verify.Distance([]float32{1, 2}, []float32{1, 2, 3}); !errors.Is(err, verify.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := verify.Distance(nil, nil); !errors.Is(err, verify.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for empty vectors, got %v", err)
	}
}

func TestMatchedIsStrict(t *testing.T) {
	if verify.Matched(0.6, 0.6) {
		t.Fatal("distance equal to threshold must not match")
	}
	if !verify.Matched(0.59, 0.6) {
		t.Fatal("distance below threshold must match")
	}
}
