package wall_nav

import (
	"fmt"
	"math"
	"time"
)

// SensorSnapshot is one cycle of ranging readings in millimeters.
//
// Conventions:
//   - all five slots are always filled; the sensor driver writes the
//     invalid sentinel instead of omitting a slot.
//   - values at or above ControllerConfig.InvalidValue mean "no reading".
type SensorSnapshot struct {
	Left       float64 `json:"l"`
	FrontLeft  float64 `json:"fl"`
	Center     float64 `json:"c"`
	FrontRight float64 `json:"fr"`
	Right      float64 `json:"r"`
}

// SnapshotFromValues builds a snapshot from [left, front-left, center, front-right, right].
func SnapshotFromValues(v [5]float64) SensorSnapshot {
	return SensorSnapshot{Left: v[0], FrontLeft: v[1], Center: v[2], FrontRight: v[3], Right: v[4]}
}

// Values returns the readings in sensor order.
func (s SensorSnapshot) Values() [5]float64 {
	return [5]float64{s.Left, s.FrontLeft, s.Center, s.FrontRight, s.Right}
}

// Normalize maps unreadable slots to the configured no-obstacle distance.
func (s SensorSnapshot) Normalize(cfg ControllerConfig) SensorSnapshot {
	v := s.Values()
	for i, d := range v {
		if math.IsNaN(d) || d < 0 || d >= cfg.InvalidValue {
			v[i] = cfg.NoObstacleDistance
		}
	}
	return SnapshotFromValues(v)
}

// side returns the straight and diagonal readings on one side of the car.
func (s SensorSnapshot) side(sd Side) (straight, diagonal float64) {
	if sd == SideRight {
		return s.Right, s.FrontRight
	}
	return s.Left, s.FrontLeft
}

func (s SensorSnapshot) String() string {
	return fmt.Sprintf("L:%4.0f FL:%4.0f C:%4.0f FR:%4.0f R:%4.0f",
		s.Left, s.FrontLeft, s.Center, s.FrontRight, s.Right)
}

// Side names one side of the vehicle.
type Side int

const (
	SideLeft Side = iota + 1
	SideRight
)

// Opposite returns the other side.
func (sd Side) Opposite() Side {
	if sd == SideRight {
		return SideLeft
	}
	return SideRight
}

func (sd Side) String() string {
	switch sd {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(sd))
	}
}

// Regime selects which handler produces the drive command.
type Regime int

const (
	RegimeInit Regime = iota + 1
	RegimeWallFollow
	RegimeLeftTurn
	RegimeRightTurn
	RegimeEmergency
	RegimeRecover
	RegimeStopped
)

// Regimes lists every regime in declaration order.
var Regimes = []Regime{
	RegimeInit,
	RegimeWallFollow,
	RegimeLeftTurn,
	RegimeRightTurn,
	RegimeEmergency,
	RegimeRecover,
	RegimeStopped,
}

func (r Regime) String() string {
	switch r {
	case RegimeInit:
		return "INIT"
	case RegimeWallFollow:
		return "WALL_FOLLOW"
	case RegimeLeftTurn:
		return "LEFT_TURN"
	case RegimeRightTurn:
		return "RIGHT_TURN"
	case RegimeEmergency:
		return "EMERGENCY"
	case RegimeRecover:
		return "RECOVER"
	case RegimeStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("Regime(%d)", int(r))
	}
}

// Label is the human-readable name used by loggers and dashboards.
func (r Regime) Label() string {
	switch r {
	case RegimeInit:
		return "initializing"
	case RegimeWallFollow:
		return "wall follow"
	case RegimeLeftTurn:
		return "left turn"
	case RegimeRightTurn:
		return "right turn"
	case RegimeEmergency:
		return "emergency"
	case RegimeRecover:
		return "recover"
	case RegimeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// turnRegime returns the turn regime toward sd.
func turnRegime(sd Side) Regime {
	if sd == SideRight {
		return RegimeRightTurn
	}
	return RegimeLeftTurn
}

// DriveCommand is the controller output handed to the actuator driver.
type DriveCommand struct {
	T        time.Duration // since controller construction
	Regime   Regime
	Steering float64 // [-1, 1], negative = left
	Throttle float64 // [-1, 1], negative = reverse
}

// SensorSource supplies the latest snapshot and a sequence number that
// advances whenever a new reading arrives.
type SensorSource interface {
	Snapshot() (SensorSnapshot, uint64)
}

// Actuator accepts the final steering/throttle pair.
type Actuator interface {
	Drive(cmd DriveCommand) error
	Close() error
}

// CycleRecord is one control cycle as seen by loggers and telemetry.
type CycleRecord struct {
	T             float64        `json:"t"`
	Snapshot      SensorSnapshot `json:"snapshot"`
	Regime        Regime         `json:"-"`
	RegimeName    string         `json:"regime"`
	RegimeSeconds float64        `json:"regime_seconds"`
	Steering      float64        `json:"steering"`
	Throttle      float64        `json:"throttle"`
	Flags         string         `json:"flags"`
}

// NewCycleRecord combines a raw snapshot with the command computed from it.
func NewCycleRecord(s SensorSnapshot, p Pattern, cmd DriveCommand, inRegime time.Duration) CycleRecord {
	return CycleRecord{
		T:             cmd.T.Seconds(),
		Snapshot:      s,
		Regime:        cmd.Regime,
		RegimeName:    cmd.Regime.String(),
		RegimeSeconds: inRegime.Seconds(),
		Steering:      cmd.Steering,
		Throttle:      cmd.Throttle,
		Flags:         p.Flags(),
	}
}

// Recorder is a side channel that receives every cycle.
type Recorder interface {
	Record(rec CycleRecord)
}
