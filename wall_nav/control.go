package wall_nav

import (
	"math"

	"github.com/samber/lo"
)

// WallError is the followed-wall distance minus the target offset (mm).
// Positive means the car is too far from the wall.
//
// When the front diagonal on the followed side reads well below the straight
// sensor the car is angled into the wall, so the diagonal is used instead.
func WallError(s SensorSnapshot, cfg ControllerConfig) float64 {
	dist, diag := s.side(cfg.FollowSide)
	if diag < dist*cfg.ApproachRatio {
		dist = diag
	}
	return dist - cfg.TargetOffset
}

// ComputeWallFollow is the PD law over wall-distance error. A positive delta
// steers toward the followed wall, i.e. back toward the target offset.
func ComputeWallFollow(err, prevErr float64, cfg ControllerConfig) (delta, rawErr float64) {
	pTerm := cfg.Kp * err
	dTerm := cfg.Kd * (err - prevErr)
	return pTerm + dTerm, err
}

// SteeringFromDelta maps a wall-relative delta onto the steering range.
func SteeringFromDelta(delta float64, cfg ControllerConfig) float64 {
	if cfg.FollowSide == SideLeft {
		delta = -delta
	}
	return clampSteering(cfg.SteerCenter+delta, cfg)
}

// ThrottleTier picks full speed when the error is small and the path ahead
// is clear, medium speed inside the wider band, low speed otherwise.
func ThrottleTier(err, center float64, cfg ControllerConfig) float64 {
	absErr := math.Abs(err)
	switch {
	case absErr < cfg.Tolerance && center > cfg.WallFar:
		return cfg.ThrottleFast
	case absErr < 2*cfg.Tolerance:
		return cfg.ThrottleNormal
	default:
		return cfg.ThrottleSlow
	}
}

// clampSteering keeps value inside [SteerLeft, SteerRight].
func clampSteering(value float64, cfg ControllerConfig) float64 {
	return lo.Clamp(value, cfg.SteerLeft, cfg.SteerRight)
}
