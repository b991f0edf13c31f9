package wall_nav

import (
	"fmt"
	"time"
)

// ControllerState is everything the navigation engine carries between
// cycles. Only NavController mutates it.
type ControllerState struct {
	Regime    Regime
	EnteredAt time.Time
	Last      DriveCommand
	Shaper    ShaperMemory

	// Previous wall error for the derivative term; valid only while
	// wall following with the PD law.
	PrevError     float64
	HavePrevError bool
}

// Transition describes one regime change.
type Transition struct {
	From  Regime
	To    Regime
	At    time.Time
	After time.Duration // time spent in From
}

// NavController is the regime state machine driving steering and throttle.
type NavController struct {
	cfg   ControllerConfig
	clock Clock
	start time.Time
	state ControllerState
	last  Pattern

	// OnTransition, when set, is called after every regime change.
	OnTransition func(Transition)
}

// NewNavController validates cfg and constructs a controller in RegimeInit.
// A nil clock uses SystemClock.
func NewNavController(cfg ControllerConfig, clock Clock) (*NavController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	now := clock.Now()
	return &NavController{
		cfg:   cfg,
		clock: clock,
		start: now,
		state: ControllerState{
			Regime:    RegimeInit,
			EnteredAt: now,
			Last:      DriveCommand{Regime: RegimeInit, Steering: cfg.SteerCenter, Throttle: cfg.ThrottleStop},
			Shaper:    NewShaperMemory(cfg.SteerCenter),
		},
	}, nil
}

// Config returns the controller configuration.
func (c *NavController) Config() ControllerConfig { return c.cfg }

// Regime returns the active regime.
func (c *NavController) Regime() Regime { return c.state.Regime }

// RegimeLabel returns the human-readable name of the active regime.
func (c *NavController) RegimeLabel() string { return c.state.Regime.Label() }

// State returns a copy of the controller state.
func (c *NavController) State() ControllerState { return c.state }

// LastPattern returns the pattern detected on the most recent update.
func (c *NavController) LastPattern() Pattern { return c.last }

// InRegime returns the time spent in the active regime at now.
func (c *NavController) InRegime(now time.Time) time.Duration {
	return nonNegative(now.Sub(c.state.EnteredAt))
}

// Elapsed returns the time since the controller was constructed.
func (c *NavController) Elapsed(now time.Time) time.Duration {
	return nonNegative(now.Sub(c.start))
}

// Update runs one control cycle against the controller clock.
func (c *NavController) Update(s SensorSnapshot) DriveCommand {
	return c.UpdateAt(c.clock.Now(), s)
}

// UpdateAt runs one control cycle at now.
func (c *NavController) UpdateAt(now time.Time, raw SensorSnapshot) DriveCommand {
	s := raw.Normalize(c.cfg)
	p := DetectPattern(s, c.cfg)
	in := handlerInput{
		Snapshot:  s,
		Pattern:   p,
		Elapsed:   c.InRegime(now),
		PrevError: c.state.PrevError,
		HavePrev:  c.state.HavePrevError,
	}

	d := c.dispatch(c.state.Regime, in)

	steering := d.Steering
	if d.Shaped {
		steering = c.state.Shaper.Shape(steering, c.cfg)
	} else {
		steering = c.state.Shaper.Bypass(steering)
	}

	c.state.PrevError, c.state.HavePrevError = d.WallError, d.HasWallError
	if d.Next != c.state.Regime {
		c.transition(now, d.Next)
	}

	cmd := DriveCommand{
		T:        c.Elapsed(now),
		Regime:   c.state.Regime,
		Steering: clampSteering(steering, c.cfg),
		Throttle: d.Throttle,
	}
	c.state.Last = cmd
	c.last = p
	return cmd
}

// Stop is the explicit shutdown path: it enters RegimeStopped and returns
// the final center/stop command.
func (c *NavController) Stop() DriveCommand {
	now := c.clock.Now()
	if c.state.Regime != RegimeStopped {
		c.transition(now, RegimeStopped)
	}
	cmd := DriveCommand{
		T:        c.Elapsed(now),
		Regime:   RegimeStopped,
		Steering: c.state.Shaper.Bypass(c.cfg.SteerCenter),
		Throttle: c.cfg.ThrottleStop,
	}
	c.state.HavePrevError = false
	c.state.Last = cmd
	return cmd
}

// FormatDebug renders a one-line status for console logging.
func (c *NavController) FormatDebug(s SensorSnapshot) string {
	return fmt.Sprintf("[%-12s] %s | St:%+5.2f Th:%+.2f (%.1fs) [%s]",
		c.state.Regime.Label(),
		s,
		c.state.Last.Steering,
		c.state.Last.Throttle,
		c.InRegime(c.clock.Now()).Seconds(),
		c.last.Flags(),
	)
}

func (c *NavController) transition(now time.Time, next Regime) {
	t := Transition{
		From:  c.state.Regime,
		To:    next,
		At:    now,
		After: c.InRegime(now),
	}
	c.state.Regime = next
	c.state.EnteredAt = now
	if c.OnTransition != nil {
		c.OnTransition(t)
	}
}

// dispatch selects the handler for r. Every regime must have an arm.
func (c *NavController) dispatch(r Regime, in handlerInput) decision {
	switch r {
	case RegimeInit:
		return handleInit(in, c.cfg)
	case RegimeWallFollow:
		return handleWallFollow(in, c.cfg)
	case RegimeLeftTurn:
		return handleTurn(SideLeft, in, c.cfg)
	case RegimeRightTurn:
		return handleTurn(SideRight, in, c.cfg)
	case RegimeEmergency:
		return handleEmergency(in, c.cfg)
	case RegimeRecover:
		return handleRecover(in, c.cfg)
	case RegimeStopped:
		return handleStopped(in, c.cfg)
	default:
		panic(fmt.Sprintf("wall_nav: no handler for regime %v", r))
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
