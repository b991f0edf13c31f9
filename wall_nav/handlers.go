package wall_nav

import "time"

// handlerInput is everything a regime handler may look at.
type handlerInput struct {
	Snapshot  SensorSnapshot
	Pattern   Pattern
	Elapsed   time.Duration // in the current regime
	PrevError float64
	HavePrev  bool
}

// decision is a handler's verdict for one cycle.
type decision struct {
	Next     Regime
	Steering float64
	Throttle float64

	// Shaped routes Steering through the shaper; hard commands bypass it.
	Shaped bool

	WallError    float64
	HasWallError bool
}

func hard(next Regime, steering, throttle float64) decision {
	return decision{Next: next, Steering: steering, Throttle: throttle}
}

func shaped(next Regime, steering, throttle float64) decision {
	return decision{Next: next, Steering: steering, Throttle: throttle, Shaped: true}
}

// emergencyEntry stops and steers hard away from the nearer side.
func emergencyEntry(p Pattern, cfg ControllerConfig) decision {
	return hard(RegimeEmergency, cfg.steerToward(p.Nearer.Opposite()), cfg.ThrottleStop)
}

// avoidanceSide is where to escape to: away from the closer wall of an
// S-curve, else away from the nearer side.
func avoidanceSide(p Pattern) Side {
	switch p.SCurve {
	case SCurveLeft:
		return SideRight
	case SCurveRight:
		return SideLeft
	default:
		return p.Nearer.Opposite()
	}
}

func handleInit(in handlerInput, cfg ControllerConfig) decision {
	if in.Pattern.FrontVeryClose {
		return emergencyEntry(in.Pattern, cfg)
	}
	return hard(RegimeWallFollow, cfg.SteerCenter, cfg.ThrottleStop)
}

func handleWallFollow(in handlerInput, cfg ControllerConfig) decision {
	s, p := in.Snapshot, in.Pattern
	follow := cfg.FollowSide

	if p.FrontVeryClose {
		return emergencyEntry(p, cfg)
	}

	// Narrow corridor: nudge away from the closer wall without changing regime.
	if p.SCurve != SCurveNone {
		return shaped(RegimeWallFollow, cfg.steerSlightly(avoidanceSide(p)), cfg.ThrottleSlow)
	}

	if p.FrontBlocked {
		return hard(turnRegime(p.Roomier), cfg.steerToward(p.Roomier), cfg.ThrottleSlow)
	}

	if p.CornerOpen(follow) {
		return hard(turnRegime(follow), cfg.steerToward(follow), cfg.ThrottleSlow)
	}

	side, diag := s.side(follow)
	if side > cfg.WallNone && diag > cfg.WallNone {
		throttle := cfg.ThrottleNormal
		if s.Center > cfg.WallFar {
			throttle = cfg.ThrottleFast
		}
		return shaped(RegimeWallFollow, cfg.SteerCenter, throttle)
	}

	err := WallError(s, cfg)
	prev := err
	if in.HavePrev {
		prev = in.PrevError
	}
	delta, raw := ComputeWallFollow(err, prev, cfg)
	throttle := ThrottleTier(raw, s.Center, cfg)
	if p.FollowClose {
		throttle = min(throttle, cfg.ThrottleSlow)
	}
	d := shaped(RegimeWallFollow, SteeringFromDelta(delta, cfg), throttle)
	d.WallError, d.HasWallError = raw, true
	return d
}

// handleTurn serves both corner regimes; dir is the turn direction.
func handleTurn(dir Side, in handlerInput, cfg ControllerConfig) decision {
	s, p := in.Snapshot, in.Pattern
	self := turnRegime(dir)
	follow := cfg.FollowSide

	if p.FrontVeryClose {
		return emergencyEntry(p, cfg)
	}

	if in.Elapsed < cfg.turnMin() {
		return hard(self, cfg.steerToward(dir), cfg.ThrottleSlow)
	}

	if in.Elapsed > cfg.turnMax() {
		if dir == follow {
			return hard(RegimeWallFollow, cfg.SteerCenter, cfg.ThrottleSlow)
		}
		return hard(RegimeRecover, cfg.SteerCenter, cfg.ThrottleReverse)
	}

	side, diag := s.side(follow)
	frontClear := s.Center > cfg.FrontBlocked*cfg.CornerExitMargin
	wallSeen := side < cfg.WallFar || diag < cfg.WallFar
	if frontClear && wallSeen {
		return hard(RegimeWallFollow, cfg.steerSlightly(follow), cfg.ThrottleSlow)
	}

	return hard(self, cfg.steerToward(dir), cfg.ThrottleSlow)
}

func handleEmergency(in handlerInput, cfg ControllerConfig) decision {
	s, p := in.Snapshot, in.Pattern

	if in.Elapsed < cfg.emergencyMin() {
		return emergencyEntry(p, cfg)
	}

	if s.Center > cfg.EmergencyClear {
		if p.CornerOpen(cfg.FollowSide) {
			return hard(turnRegime(cfg.FollowSide), cfg.steerSlightly(cfg.FollowSide), cfg.ThrottleSlow)
		}
		return hard(RegimeWallFollow, cfg.steerSlightly(p.Roomier), cfg.ThrottleSlow)
	}

	// Still inside the stop band: back out without leaving Emergency.
	if p.FrontVeryClose {
		return hard(RegimeEmergency, cfg.steerSlightly(avoidanceSide(p)), cfg.ThrottleReverse)
	}
	return hard(RegimeRecover, cfg.steerSlightly(avoidanceSide(p)), cfg.ThrottleReverse)
}

func handleRecover(in handlerInput, cfg ControllerConfig) decision {
	s, p := in.Snapshot, in.Pattern
	backing := hard(RegimeRecover, cfg.steerSlightly(avoidanceSide(p)), cfg.ThrottleReverse)

	if p.FrontVeryClose {
		return emergencyEntry(p, cfg)
	}
	if in.Elapsed < cfg.recoverMin() {
		return backing
	}
	if s.Center > cfg.WallMedium {
		return hard(RegimeWallFollow, cfg.SteerCenter, cfg.ThrottleSlow)
	}
	if in.Elapsed > cfg.recoverMax() {
		return hard(RegimeWallFollow, cfg.SteerCenter, cfg.ThrottleSlow)
	}
	return backing
}

func handleStopped(_ handlerInput, cfg ControllerConfig) decision {
	return hard(RegimeStopped, cfg.SteerCenter, cfg.ThrottleStop)
}
