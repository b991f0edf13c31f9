package wall_nav

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShaperSmooth(t *testing.T) {
	m := NewShaperMemory(0)
	assert.InDelta(t, 0.35, m.Smooth(1, 0.65), 1e-12)
	assert.InDelta(t, 0.65*0.35+0.35, m.Smooth(1, 0.65), 1e-12)
}

func TestShaperRateLimit(t *testing.T) {
	m := NewShaperMemory(0)
	assert.InDelta(t, 0.2, m.RateLimit(1, 0.2), 1e-12)
	assert.InDelta(t, 0.0, m.RateLimit(-1, 0.2), 1e-12)
	assert.InDelta(t, 0.05, m.RateLimit(0.05, 0.2), 1e-12, "small moves pass through")
}

func TestShapeNeverExceedsMaxStep(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.SmoothingAlpha = 0
	m := NewShaperMemory(0)

	targets := []float64{1, -1, 1, 0.3, -0.9, -0.9, 1, 0, -1, 0.5, 1, -1}
	prev := m.Limited
	for _, target := range targets {
		out := m.Shape(target, cfg)
		assert.LessOrEqual(t, math.Abs(out-prev), cfg.MaxSteerStep+1e-12)
		prev = out
	}
}

func TestShaperBypassSyncsMemory(t *testing.T) {
	m := NewShaperMemory(0)
	m.Shape(0.5, DefaultControllerConfig())

	assert.Equal(t, -1.0, m.Bypass(-1))
	assert.Equal(t, ShaperMemory{Smoothed: -1, Limited: -1}, m)
}
