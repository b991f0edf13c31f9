package wall_nav

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSensorPacket(t *testing.T) {
	got, ts, hasT, err := ParseSensorPacket([]byte("100,200,300,400,500"))
	require.NoError(t, err)
	assert.Equal(t, snap(100, 200, 300, 400, 500), got)
	assert.False(t, hasT)
	assert.Zero(t, ts)

	got, ts, hasT, err = ParseSensorPacket([]byte(" 1.5, 100 ,200,300,400,9999\n"))
	require.NoError(t, err)
	assert.Equal(t, snap(100, 200, 300, 400, 9999), got)
	assert.True(t, hasT)
	assert.Equal(t, 1.5, ts)

	for _, bad := range []string{"", "  ", "1,2,3", "1,2,3,4,5,6,7", "a,2,3,4,5", "x,1,2,3,4,5"} {
		_, _, _, err := ParseSensorPacket([]byte(bad))
		assert.ErrorIs(t, err, ErrBadPacket, "payload %q", bad)
	}
}

func TestLiveStore(t *testing.T) {
	store := &liveStore{}
	_, seq := store.Snapshot()
	assert.Zero(t, seq)

	store.Update(clearAhead)
	store.Update(critical)
	got, seq := store.Snapshot()
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, critical, got)
}

func TestUDPListenerFeedsStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &liveStore{}
	addr, err := startUDPListener(ctx, SensorConfig{UDPAddr: "127.0.0.1:0"}, store, quietLogger())
	require.NoError(t, err)

	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("0.04,250,2000,1500,2000,2000"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, seq := store.Snapshot()
		return seq == 1
	}, time.Second, 5*time.Millisecond)
	got, _ := store.Snapshot()
	assert.Equal(t, snap(250, 2000, 1500, 2000, 2000), got)
}

func TestOutputSender(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	sender, err := NewOutputSender(ln.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Drive(DriveCommand{Regime: RegimeWallFollow, Steering: -0.25, Throttle: 0.3}))

	require.NoError(t, ln.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 64)
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "-0.2500,0.3000,WALL_FOLLOW", string(buf[:n]))
}

func TestOutputSenderWithoutAddress(t *testing.T) {
	sender, err := NewOutputSender("")
	require.NoError(t, err)
	assert.NoError(t, sender.Drive(DriveCommand{Regime: RegimeStopped}))
	assert.NoError(t, sender.Close())
}

type fakeSource struct {
	snap SensorSnapshot
	seq  uint64
}

func (f *fakeSource) Snapshot() (SensorSnapshot, uint64) { return f.snap, f.seq }

func (f *fakeSource) push(s SensorSnapshot) {
	f.snap = s
	f.seq++
}

type fakeActuator struct {
	sent []DriveCommand
	err  error
}

func (f *fakeActuator) Drive(cmd DriveCommand) error {
	f.sent = append(f.sent, cmd)
	return f.err
}

func (f *fakeActuator) Close() error { return nil }

func (f *fakeActuator) last() DriveCommand { return f.sent[len(f.sent)-1] }

type memRecorder struct{ records []CycleRecord }

func (m *memRecorder) Record(rec CycleRecord) { m.records = append(m.records, rec) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(t *testing.T, opts DriverOptions) (*Driver, *fakeSource, *fakeActuator, *ManualClock) {
	t.Helper()
	clock := NewManualClock(t0)
	ctrl, err := NewNavController(DefaultControllerConfig(), clock)
	require.NoError(t, err)
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	src, act := &fakeSource{}, &fakeActuator{}
	return NewDriver(ctrl, src, act, opts), src, act, clock
}

func TestDriverHoldsUntilFirstReading(t *testing.T) {
	d, src, act, _ := newTestDriver(t, DriverOptions{})

	cmd, err := d.Tick(t0.Add(cycle))
	require.NoError(t, err)
	assert.True(t, d.Stale())
	assert.Zero(t, d.Cycles())
	assert.Equal(t, RegimeInit, cmd.Regime)
	assert.Equal(t, 0.0, cmd.Throttle)

	src.push(clearAhead)
	cmd, err = d.Tick(t0.Add(2 * cycle))
	require.NoError(t, err)
	assert.False(t, d.Stale())
	assert.Equal(t, uint64(1), d.Cycles())
	assert.Equal(t, RegimeWallFollow, cmd.Regime)
	assert.Len(t, act.sent, 2)
}

func TestDriverStopsOnStaleSensors(t *testing.T) {
	rec := &memRecorder{}
	d, src, act, _ := newTestDriver(t, DriverOptions{
		StaleAfter: 100 * time.Millisecond,
		Recorders:  []Recorder{rec},
	})

	src.push(clearAhead)
	for i := 1; i <= 3; i++ {
		_, err := d.Tick(t0.Add(time.Duration(i) * cycle))
		require.NoError(t, err)
	}
	assert.Equal(t, RegimeWallFollow, act.last().Regime)
	assert.Equal(t, DefaultControllerConfig().ThrottleFast, act.last().Throttle)

	// Same sequence number for longer than StaleAfter.
	_, err := d.Tick(t0.Add(6 * cycle))
	require.NoError(t, err)
	assert.True(t, d.Stale())
	assert.Equal(t, 0.0, act.last().Throttle)
	assert.Equal(t, uint64(3), d.Cycles(), "stale cycles do not update the controller")
	assert.Len(t, rec.records, 3)

	src.push(clearAhead)
	_, err = d.Tick(t0.Add(7 * cycle))
	require.NoError(t, err)
	assert.False(t, d.Stale())
	assert.Len(t, rec.records, 4)
	assert.Equal(t, "WALL_FOLLOW", rec.records[3].RegimeName)
}

func TestDriverLogsTransitionsAndDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d, src, _, _ := newTestDriver(t, DriverOptions{Logger: logger, LogTransitions: true, DebugEveryN: 2})

	src.push(clearAhead)
	_, _ = d.Tick(t0.Add(cycle))
	_, _ = d.Tick(t0.Add(2 * cycle))

	out := buf.String()
	assert.Contains(t, out, "regime change")
	assert.Contains(t, out, "from=INIT")
	assert.Contains(t, out, "to=WALL_FOLLOW")
	assert.Contains(t, out, "wall follow")
}

func TestDriverReturnsActuatorErrors(t *testing.T) {
	d, src, act, _ := newTestDriver(t, DriverOptions{})
	act.err = errors.New("link down")
	src.push(clearAhead)

	_, err := d.Tick(t0.Add(cycle))
	assert.EqualError(t, err, "link down")
}

func TestDriverRunSendsFinalStop(t *testing.T) {
	d, src, act, _ := newTestDriver(t, DriverOptions{})
	src.push(clearAhead)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx, 5*time.Millisecond))

	require.NotEmpty(t, act.sent)
	final := act.last()
	assert.Equal(t, RegimeStopped, final.Regime)
	assert.Equal(t, 0.0, final.Throttle)
	assert.Equal(t, 0.0, final.Steering)
}

func TestDriverRunRejectsBadPeriod(t *testing.T) {
	d, _, _, _ := newTestDriver(t, DriverOptions{})
	assert.ErrorIs(t, d.Run(context.Background(), 0), ErrInvalidConfig)
}

func TestRunLiveReleasesSensorPortOnError(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())

	notDir := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(notDir, nil, 0o644))

	cfg := DefaultAppConfig()
	cfg.Sensors.UDPAddr = addr
	cfg.Recorder.Enabled = true
	cfg.Recorder.Dir = filepath.Join(notDir, "logs")

	require.Error(t, RunLive(context.Background(), cfg, quietLogger()))

	assert.Eventually(t, func() bool {
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, time.Second, 10*time.Millisecond, "sensor socket is released after a failed start")
}

func TestRunLiveRejectsBadOutputAddress(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.Sensors.UDPAddr = "127.0.0.1:0"
	cfg.Output.UDPAddr = "no-port"

	assert.Error(t, RunLive(context.Background(), cfg, quietLogger()))
}
