package wall_nav

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"
)

// LogRow is one recorded cycle of a drive log.
type LogRow struct {
	Line     int
	T        float64
	Steering float64
	Throttle float64
	Snapshot SensorSnapshot
	State    string
}

// logColumns maps accepted header names onto the drive log fields. The
// five-sensor logs from the earlier firmware used l2/l1/r1/r2 naming.
var logColumns = map[string]string{
	"timestamp": "timestamp",
	"steering":  "steering",
	"throttle":  "throttle",
	"sensor_l":  "l",
	"sensor_l2": "l",
	"sensor_fl": "fl",
	"sensor_l1": "fl",
	"sensor_c":  "c",
	"sensor_fr": "fr",
	"sensor_r1": "fr",
	"sensor_r":  "r",
	"sensor_r2": "r",
	"state":     "state",
}

var requiredColumns = []string{"timestamp", "l", "fl", "c", "fr", "r"}

// ReadDriveLog parses a CSV drive log. Columns are located by header name;
// steering, throttle and state are optional.
func ReadDriveLog(r io.Reader) ([]LogRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty log", ErrBadLogRow)
		}
		return nil, fmt.Errorf("read log header: %w", err)
	}

	idx := map[string]int{}
	for i, name := range header {
		if field, ok := logColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			idx[field] = i
		}
	}
	missing := lo.Filter(requiredColumns, func(col string, _ int) bool {
		_, ok := idx[col]
		return !ok
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header missing %s", ErrBadLogRow, strings.Join(missing, ", "))
	}

	var rows []LogRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLogRow, err)
		}
		line, _ := cr.FieldPos(0)
		row, err := parseLogRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadLogRow, line, err)
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, nil
}

func parseLogRow(rec []string, idx map[string]int) (LogRow, error) {
	field := func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return rec[i], true
	}
	number := func(name string, required bool) (float64, error) {
		raw, ok := field(name)
		if !ok {
			if required {
				return 0, fmt.Errorf("missing %s", name)
			}
			return 0, nil
		}
		v, err := parseF64(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %v", name, err)
		}
		return v, nil
	}

	var row LogRow
	var err error
	if row.T, err = number("timestamp", true); err != nil {
		return row, err
	}
	if row.Steering, err = number("steering", false); err != nil {
		return row, err
	}
	if row.Throttle, err = number("throttle", false); err != nil {
		return row, err
	}
	var v [5]float64
	for i, name := range []string{"l", "fl", "c", "fr", "r"} {
		if v[i], err = number(name, true); err != nil {
			return row, err
		}
	}
	row.Snapshot = SnapshotFromValues(v)
	if state, ok := field("state"); ok {
		row.State = strings.TrimSpace(state)
	}
	return row, nil
}

// ReplayStep pairs a recorded row with the command replayed from it.
type ReplayStep struct {
	Row     LogRow
	Command DriveCommand
	Flags   string
}

// RegimeSummary is the share of a replay spent in one regime.
type RegimeSummary struct {
	Regime  Regime
	Cycles  int
	Seconds float64
}

// ReplayResult is the outcome of running a drive log through a controller.
type ReplayResult struct {
	Steps       []ReplayStep
	Transitions []Transition
	Summary     []RegimeSummary // regimes with at least one cycle, in declaration order
	Duration    time.Duration

	// Disagreements counts rows whose recorded state differs from the
	// replayed regime.
	Disagreements int
	// MaxSteerStep is the largest change between consecutive replayed
	// steering commands.
	MaxSteerStep float64
}

// replayOrigin anchors log timestamps on the manual clock.
var replayOrigin = time.Unix(0, 0).UTC()

// Replay runs rows through a fresh controller, driving its clock from the
// recorded timestamps. Out-of-order timestamps hold the clock still.
func Replay(rows []LogRow, cfg ControllerConfig) (ReplayResult, error) {
	var res ReplayResult
	if len(rows) == 0 {
		return res, nil
	}

	clock := NewManualClock(replayOrigin.Add(seconds(rows[0].T)))
	ctrl, err := NewNavController(cfg, clock)
	if err != nil {
		return res, err
	}
	ctrl.OnTransition = func(t Transition) {
		res.Transitions = append(res.Transitions, t)
	}

	res.Steps = make([]ReplayStep, 0, len(rows))
	for _, row := range rows {
		clock.Set(replayOrigin.Add(seconds(row.T)))
		cmd := ctrl.Update(row.Snapshot)
		res.Steps = append(res.Steps, ReplayStep{
			Row:     row,
			Command: cmd,
			Flags:   ctrl.LastPattern().Flags(),
		})
	}

	res.Duration = res.Steps[len(res.Steps)-1].Command.T
	res.Summary = summarize(res.Steps)
	res.Disagreements = lo.CountBy(res.Steps, func(s ReplayStep) bool {
		return s.Row.State != "" && !strings.EqualFold(s.Row.State, s.Command.Regime.String())
	})
	for i := 1; i < len(res.Steps); i++ {
		step := math.Abs(res.Steps[i].Command.Steering - res.Steps[i-1].Command.Steering)
		res.MaxSteerStep = max(res.MaxSteerStep, step)
	}
	return res, nil
}

// LogTime returns when t happened on the log's own timestamp scale.
func (r ReplayResult) LogTime(t Transition) float64 {
	return t.At.Sub(replayOrigin).Seconds()
}

// summarize attributes each step's interval up to the next step to the
// regime it commanded.
func summarize(steps []ReplayStep) []RegimeSummary {
	cycles := lo.CountValuesBy(steps, func(s ReplayStep) Regime {
		return s.Command.Regime
	})
	secs := map[Regime]float64{}
	for i := 0; i+1 < len(steps); i++ {
		dt := (steps[i+1].Command.T - steps[i].Command.T).Seconds()
		secs[steps[i].Command.Regime] += dt
	}

	present := lo.Filter(Regimes, func(r Regime, _ int) bool {
		return cycles[r] > 0
	})
	return lo.Map(present, func(r Regime, _ int) RegimeSummary {
		return RegimeSummary{Regime: r, Cycles: cycles[r], Seconds: secs[r]}
	})
}
