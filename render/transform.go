package render

import (
	"math"
)

const (
	// DefaultFriction is the per frame damping applied to the drift.
	DefaultFriction = 0.95

	// FrictionSnap is the magnitude below which a drift component is zeroed.
	FrictionSnap = 0.001
)

// Transform is the global drift cursor driven by the movement keys. Every
// instance is moved by the drift each frame and a newly appended instance
// starts offset by it.
type Transform struct {
	TranslateX float32
	TranslateY float32

	// Scale is grown while the forward key is held. Friction leaves it alone.
	Scale float32
}

// NewTransform returns a transform without drift and unit scale.
func NewTransform() Transform {
	return Transform{Scale: 1}
}

// ApplyFriction multiplies the translation by factor and snaps components
// whose magnitude drops below FrictionSnap to exactly zero.
func (t *Transform) ApplyFriction(factor float32) {
	if t == nil {
		return
	}

	t.TranslateX *= factor
	t.TranslateY *= factor

	if math.Abs(float64(t.TranslateX)) < FrictionSnap {
		t.TranslateX = 0
	}
	if math.Abs(float64(t.TranslateY)) < FrictionSnap {
		t.TranslateY = 0
	}
}

// Still reports whether there is no drift left.
func (t Transform) Still() bool {
	return t.TranslateX == 0 && t.TranslateY == 0
}
