package wall_nav

import "github.com/samber/lo"

// ShaperMemory is the steering shaper's state carried between cycles.
// Only the state machine owns it.
type ShaperMemory struct {
	Smoothed float64 // previous exponential-smoothing output
	Limited  float64 // previous rate-limited output
}

// NewShaperMemory starts both stages at the given steering position.
func NewShaperMemory(start float64) ShaperMemory {
	return ShaperMemory{Smoothed: start, Limited: start}
}

// Smooth applies smoothed = a*prev + (1-a)*target and remembers the result.
func (m *ShaperMemory) Smooth(target, alpha float64) float64 {
	m.Smoothed = alpha*m.Smoothed + (1-alpha)*target
	return m.Smoothed
}

// RateLimit bounds the change from the previous limited value to maxStep.
func (m *ShaperMemory) RateLimit(target, maxStep float64) float64 {
	m.Limited = lo.Clamp(target, m.Limited-maxStep, m.Limited+maxStep)
	return m.Limited
}

// Shape runs smoothing then rate limiting, always in that order.
func (m *ShaperMemory) Shape(target float64, cfg ControllerConfig) float64 {
	smoothed := m.Smooth(target, cfg.SmoothingAlpha)
	return m.RateLimit(smoothed, cfg.MaxSteerStep)
}

// Bypass passes a hard steering command straight through while keeping
// both stages in sync with it.
func (m *ShaperMemory) Bypass(target float64) float64 {
	m.Smoothed = target
	m.Limited = target
	return target
}
