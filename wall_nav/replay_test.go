package wall_nav

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordDrive runs a controller over inputs at the given cycle and returns
// the CSV drive log it produced.
func recordDrive(t *testing.T, inputs []SensorSnapshot, step time.Duration) []byte {
	t.Helper()
	var buf bytes.Buffer
	rec, err := NewCSVRecorder(&buf, 10)
	require.NoError(t, err)

	clock := NewManualClock(t0)
	ctrl, err := NewNavController(DefaultControllerConfig(), clock)
	require.NoError(t, err)
	for _, in := range inputs {
		clock.Advance(step)
		cmd := ctrl.Update(in)
		rec.Record(NewCycleRecord(in, ctrl.LastPattern(), cmd, ctrl.InRegime(clock.Now())))
	}
	require.NoError(t, rec.Close())
	return buf.Bytes()
}

func repeat(s SensorSnapshot, n int) []SensorSnapshot {
	out := make([]SensorSnapshot, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestReplayReproducesRecordedRegimes(t *testing.T) {
	var inputs []SensorSnapshot
	inputs = append(inputs, repeat(clearAhead, 10)...)
	inputs = append(inputs, repeat(snap(500, 500, 250, 500, 500), 40)...)
	inputs = append(inputs, repeat(critical, 10)...)
	inputs = append(inputs, repeat(snap(300, 2000, 2000, 2000, 2000), 20)...)

	// 70ms keeps every regime timer off a cycle boundary, so millisecond
	// timestamps in the log cannot flip a guard.
	log := recordDrive(t, inputs, 70*time.Millisecond)

	rows, err := ReadDriveLog(bytes.NewReader(log))
	require.NoError(t, err)
	require.Len(t, rows, len(inputs))
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, snap(500, 500, 50, 500, 500), rows[50].Snapshot)

	res, err := Replay(rows, DefaultControllerConfig())
	require.NoError(t, err)
	require.Len(t, res.Steps, len(rows))
	assert.Zero(t, res.Disagreements)
	assert.NotEmpty(t, res.Transitions)
	assert.InDelta(t, (79 * 70 * time.Millisecond).Seconds(), res.Duration.Seconds(), 1e-3)

	total := 0
	for i, s := range res.Summary {
		total += s.Cycles
		if i > 0 {
			assert.Less(t, res.Summary[i-1].Regime, s.Regime, "summary follows declaration order")
		}
	}
	assert.Equal(t, len(rows), total)

	first := res.Transitions[0]
	assert.Equal(t, RegimeInit, first.From)
	assert.InDelta(t, 0.07, res.LogTime(first), 1e-6)
}

func TestReplayFlagsDisagreements(t *testing.T) {
	rows := []LogRow{
		{T: 0.04, Snapshot: clearAhead, State: "WALL_FOLLOW"},
		{T: 0.08, Snapshot: clearAhead, State: "EMERGENCY"},
		{T: 0.12, Snapshot: clearAhead},
	}
	res, err := Replay(rows, DefaultControllerConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Disagreements)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, RegimeWallFollow, res.Summary[0].Regime)
	assert.Equal(t, 3, res.Summary[0].Cycles)
	assert.InDelta(t, 0.08, res.Summary[0].Seconds, 1e-6)
}

func TestReplayEmptyAndInvalid(t *testing.T) {
	res, err := Replay(nil, DefaultControllerConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Steps)

	cfg := DefaultControllerConfig()
	cfg.MaxSteerStep = 0
	_, err = Replay([]LogRow{{T: 0}}, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestReadDriveLogLegacyHeader(t *testing.T) {
	in := "timestamp,steering,throttle,sensor_l2,sensor_l1,sensor_c,sensor_r1,sensor_r2,state\n" +
		"0.040,0.000,0.000,250,2000,1500,2000,2000,INIT\n" +
		"\n" +
		"0.080,-0.120,0.380,260,2000,1500,2000,2000,WALL_FOLLOW\n"

	rows, err := ReadDriveLog(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, LogRow{
		Line:     4,
		T:        0.08,
		Steering: -0.12,
		Throttle: 0.38,
		Snapshot: snap(260, 2000, 1500, 2000, 2000),
		State:    "WALL_FOLLOW",
	}, rows[1])
}

func TestReadDriveLogSensorsOnly(t *testing.T) {
	rows, err := ReadDriveLog(strings.NewReader("timestamp,sensor_l,sensor_fl,sensor_c,sensor_fr,sensor_r\n1,2,3,4,5,6\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, snap(2, 3, 4, 5, 6), rows[0].Snapshot)
	assert.Empty(t, rows[0].State)
}

func TestReadDriveLogErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "timestamp,sensor_l,sensor_fl,sensor_c,sensor_fr\n1,2,3,4,5\n",
		"bad number":     "timestamp,sensor_l,sensor_fl,sensor_c,sensor_fr,sensor_r\n1,2,x,4,5,6\n",
		"short row":      "timestamp,sensor_l,sensor_fl,sensor_c,sensor_fr,sensor_r\n1,2,3\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadDriveLog(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrBadLogRow)
		})
	}

	_, err := ReadDriveLog(strings.NewReader("timestamp,sensor_l,sensor_fl,sensor_c,sensor_fr,sensor_r\n1,2,x,4,5,6\n"))
	assert.ErrorContains(t, err, "line 2")
}
