package wall_nav

import (
	"errors"
	"strings"
	"time"
)

// ControllerConfig holds every threshold and gain of the navigation engine.
// It is loaded once before the loop starts and never mutated afterwards.
type ControllerConfig struct {
	// Wall to follow.
	FollowSide Side `json:"follow_side" yaml:"follow_side"`

	// Sensor sentinel handling (mm).
	InvalidValue       float64 `json:"invalid_value" yaml:"invalid_value"`
	NoObstacleDistance float64 `json:"no_obstacle_distance" yaml:"no_obstacle_distance"`

	// Steering positions, normalized to [-1, 1] with negative = left.
	SteerCenter float64 `json:"steer_center" yaml:"steer_center"`
	SteerLeft   float64 `json:"steer_left" yaml:"steer_left"`
	SteerRight  float64 `json:"steer_right" yaml:"steer_right"`
	SteerSlight float64 `json:"steer_slight" yaml:"steer_slight"` // offset from center for nudges

	// Throttle tiers, [-1, 1] with negative = reverse.
	ThrottleStop    float64 `json:"throttle_stop" yaml:"throttle_stop"`
	ThrottleSlow    float64 `json:"throttle_slow" yaml:"throttle_slow"`
	ThrottleNormal  float64 `json:"throttle_normal" yaml:"throttle_normal"`
	ThrottleFast    float64 `json:"throttle_fast" yaml:"throttle_fast"`
	ThrottleReverse float64 `json:"throttle_reverse" yaml:"throttle_reverse"`

	// Distance bands (mm).
	WallVeryClose float64 `json:"wall_very_close" yaml:"wall_very_close"`
	WallClose     float64 `json:"wall_close" yaml:"wall_close"`
	WallMedium    float64 `json:"wall_medium" yaml:"wall_medium"`
	WallFar       float64 `json:"wall_far" yaml:"wall_far"`
	WallNone      float64 `json:"wall_none" yaml:"wall_none"`

	// Pattern thresholds (mm).
	FrontBlocked       float64 `json:"front_blocked" yaml:"front_blocked"`
	FrontDiagonalScale float64 `json:"front_diagonal_scale" yaml:"front_diagonal_scale"`
	CornerOpen         float64 `json:"corner_open" yaml:"corner_open"`
	CornerExitMargin   float64 `json:"corner_exit_margin" yaml:"corner_exit_margin"`
	SCurveThreshold    float64 `json:"s_curve_threshold" yaml:"s_curve_threshold"`
	SCurveMargin       float64 `json:"s_curve_margin" yaml:"s_curve_margin"`
	EmergencyClear     float64 `json:"emergency_clear" yaml:"emergency_clear"`

	// Wall following.
	TargetOffset  float64 `json:"target_offset" yaml:"target_offset"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance"`
	ApproachRatio float64 `json:"approach_ratio" yaml:"approach_ratio"`
	Kp            float64 `json:"kp" yaml:"kp"`
	Kd            float64 `json:"kd" yaml:"kd"`

	// Steering shaper.
	SmoothingAlpha float64 `json:"smoothing_alpha" yaml:"smoothing_alpha"`
	MaxSteerStep   float64 `json:"max_steer_step" yaml:"max_steer_step"`

	// Regime timers (seconds).
	TurnMinSeconds          float64 `json:"turn_min_seconds" yaml:"turn_min_seconds"`
	TurnMaxSeconds          float64 `json:"turn_max_seconds" yaml:"turn_max_seconds"`
	EmergencyMinStopSeconds float64 `json:"emergency_min_stop_seconds" yaml:"emergency_min_stop_seconds"`
	RecoverMinSeconds       float64 `json:"recover_min_seconds" yaml:"recover_min_seconds"`
	RecoverMaxSeconds       float64 `json:"recover_max_seconds" yaml:"recover_max_seconds"`
}

// DefaultControllerConfig returns the left-hand tuning for a roughly
// 10m x 5.5m loop with an island in the middle.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		FollowSide: SideLeft,

		InvalidValue:       9999,
		NoObstacleDistance: 2000,

		SteerCenter: 0,
		SteerLeft:   -1,
		SteerRight:  1,
		SteerSlight: 0.35,

		ThrottleStop:    0,
		ThrottleSlow:    0.23,
		ThrottleNormal:  0.30,
		ThrottleFast:    0.38,
		ThrottleReverse: -0.15,

		WallVeryClose: 150,
		WallClose:     200,
		WallMedium:    350,
		WallFar:       500,
		WallNone:      800,

		FrontBlocked:       300,
		FrontDiagonalScale: 0.8,
		CornerOpen:         600,
		CornerExitMargin:   1.2,
		SCurveThreshold:    300,
		SCurveMargin:       100,
		EmergencyClear:     300,

		TargetOffset:  250,
		Tolerance:     50,
		ApproachRatio: 0.8,
		Kp:            0.0055,
		Kd:            0.01,

		SmoothingAlpha: 0.65,
		MaxSteerStep:   0.2,

		TurnMinSeconds:          0.3,
		TurnMaxSeconds:          2.0,
		EmergencyMinStopSeconds: 0.3,
		RecoverMinSeconds:       0.5,
		RecoverMaxSeconds:       1.5,
	}
}

// CautiousControllerConfig trades lap time for margin: slower tiers,
// earlier turns and longer committed manoeuvres.
func CautiousControllerConfig() ControllerConfig {
	cfg := DefaultControllerConfig()
	cfg.ThrottleSlow = 0.20
	cfg.ThrottleNormal = 0.25
	cfg.ThrottleFast = 0.30
	cfg.FrontBlocked = 400
	cfg.TurnMinSeconds = 0.5
	cfg.TurnMaxSeconds = 3.0
	cfg.MaxSteerStep = 0.15
	cfg.SmoothingAlpha = 0.75
	return cfg
}

// ControllerPreset returns a named tuning: "default" or "cautious".
func ControllerPreset(name string) (ControllerConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultControllerConfig(), nil
	case "cautious":
		return CautiousControllerConfig(), nil
	default:
		return ControllerConfig{}, invalid("unknown controller preset %q", name)
	}
}

// Validate reports every inconsistency at once.
func (c ControllerConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, invalid(format, args...))
		}
	}

	check(c.FollowSide == SideLeft || c.FollowSide == SideRight, "follow_side must be left or right")
	check(c.InvalidValue > 0, "invalid_value must be > 0")
	check(c.NoObstacleDistance > 0, "no_obstacle_distance must be > 0")

	check(c.SteerLeft < c.SteerCenter && c.SteerCenter < c.SteerRight,
		"steering must satisfy steer_left < steer_center < steer_right")
	check(c.SteerSlight > 0 && c.SteerCenter-c.SteerSlight >= c.SteerLeft && c.SteerCenter+c.SteerSlight <= c.SteerRight,
		"steer_slight must be > 0 and stay inside the steering range")

	check(c.ThrottleReverse < c.ThrottleStop, "throttle_reverse must be below throttle_stop")
	check(c.ThrottleStop < c.ThrottleSlow && c.ThrottleSlow <= c.ThrottleNormal && c.ThrottleNormal <= c.ThrottleFast,
		"throttle tiers must satisfy stop < slow <= normal <= fast")
	check(c.ThrottleReverse >= -1 && c.ThrottleFast <= 1, "throttle tiers must stay inside [-1, 1]")

	check(c.WallVeryClose > 0 && c.WallVeryClose < c.WallClose && c.WallClose < c.WallMedium &&
		c.WallMedium < c.WallFar && c.WallFar < c.WallNone,
		"distance bands must satisfy 0 < very_close < close < medium < far < none")
	check(c.WallNone < c.NoObstacleDistance, "wall_none must be below no_obstacle_distance")
	check(c.FrontBlocked > c.WallVeryClose, "front_blocked must exceed wall_very_close")
	check(c.FrontDiagonalScale > 0 && c.FrontDiagonalScale <= 1, "front_diagonal_scale must be in (0, 1]")
	check(c.CornerOpen > c.TargetOffset, "corner_open must exceed target_offset")
	check(c.CornerExitMargin >= 1, "corner_exit_margin must be >= 1")
	check(c.SCurveThreshold > 0, "s_curve_threshold must be > 0")
	check(c.SCurveMargin >= 0, "s_curve_margin must be >= 0")
	check(c.EmergencyClear >= c.WallVeryClose, "emergency_clear must be >= wall_very_close")

	check(c.TargetOffset > 0, "target_offset must be > 0")
	check(c.Tolerance > 0, "tolerance must be > 0")
	check(c.ApproachRatio > 0 && c.ApproachRatio <= 1, "approach_ratio must be in (0, 1]")
	check(c.Kp >= 0 && c.Kd >= 0, "kp and kd must be >= 0")

	check(c.SmoothingAlpha >= 0 && c.SmoothingAlpha < 1, "smoothing_alpha must be in [0, 1)")
	check(c.MaxSteerStep > 0, "max_steer_step must be > 0")

	check(c.TurnMinSeconds >= 0, "turn_min_seconds must be >= 0")
	check(c.TurnMinSeconds <= c.TurnMaxSeconds, "turn_min_seconds (%.2f) exceeds turn_max_seconds (%.2f)",
		c.TurnMinSeconds, c.TurnMaxSeconds)
	check(c.EmergencyMinStopSeconds >= 0, "emergency_min_stop_seconds must be >= 0")
	check(c.RecoverMinSeconds >= 0, "recover_min_seconds must be >= 0")
	check(c.RecoverMinSeconds <= c.RecoverMaxSeconds, "recover_min_seconds (%.2f) exceeds recover_max_seconds (%.2f)",
		c.RecoverMinSeconds, c.RecoverMaxSeconds)

	return errors.Join(errs...)
}

// steerToward returns the hard steering extreme toward sd.
func (c ControllerConfig) steerToward(sd Side) float64 {
	if sd == SideRight {
		return c.SteerRight
	}
	return c.SteerLeft
}

// steerSlightly returns the nudge position toward sd.
func (c ControllerConfig) steerSlightly(sd Side) float64 {
	if sd == SideRight {
		return c.SteerCenter + c.SteerSlight
	}
	return c.SteerCenter - c.SteerSlight
}

func (c ControllerConfig) turnMin() time.Duration { return seconds(c.TurnMinSeconds) }
func (c ControllerConfig) turnMax() time.Duration { return seconds(c.TurnMaxSeconds) }
func (c ControllerConfig) emergencyMin() time.Duration { return seconds(c.EmergencyMinStopSeconds) }
func (c ControllerConfig) recoverMin() time.Duration { return seconds(c.RecoverMinSeconds) }
func (c ControllerConfig) recoverMax() time.Duration { return seconds(c.RecoverMaxSeconds) }
