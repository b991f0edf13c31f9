package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	navlog "minicar-nav/internal/log"
)

// RunLive starts the UDP-to-UDP control loop and blocks until ctx is done.
// On return the actuator has been sent a final center/stop command.
func RunLive(ctx context.Context, cfg AppConfig, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Sensors.UDPAddr == "" {
		return invalid("sensors.udp_addr must be set")
	}
	if logger == nil {
		logger = navlog.L()
	}

	controller, err := NewNavController(cfg.Controller, SystemClock{})
	if err != nil {
		return err
	}
	sender, err := NewOutputSender(cfg.Output.UDPAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = sender.Close()
	}()

	// Cancelled on every return so the sensor socket is never left bound.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := &liveStore{}
	listenAddr, err := startUDPListener(ctx, cfg.Sensors, store, logger)
	if err != nil {
		return err
	}

	runID := NewRunID()
	opts := DriverOptions{
		Logger:         logger.With("run", runID[:8]),
		StaleAfter:     seconds(cfg.Sensors.StaleSeconds),
		DebugEveryN:    cfg.Log.EveryN,
		LogTransitions: cfg.Log.Transitions,
	}

	if cfg.Recorder.Enabled {
		rec, err := OpenCSVRecorder(cfg.Recorder, runID, time.Now())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("drive log close failed", "path", rec.Path(), "err", err)
			}
		}()
		opts.Recorders = append(opts.Recorders, rec)
		logger.Info("drive log opened", "path", rec.Path())
	}

	telemetry, err := StartTelemetry(cfg.Telemetry, cfg, logger)
	if err != nil {
		return err
	}
	if telemetry != nil {
		defer func() {
			_ = telemetry.Close()
		}()
		opts.Recorders = append(opts.Recorders, telemetry)
	}

	driver := NewDriver(controller, store, sender, opts)
	logger.Info("navigation started",
		"run", runID,
		"sensors", listenAddr.String(),
		"output", cfg.Output.UDPAddr,
		"hz", cfg.Hz,
		"follow", cfg.Controller.FollowSide,
	)
	return driver.Run(ctx, cfg.Period())
}

// DriverOptions are the optional collaborators of a Driver.
type DriverOptions struct {
	Recorders []Recorder
	Logger    *slog.Logger

	// StaleAfter is how long the sensor sequence may stand still before
	// the car is held at center/stop. Zero disables the check.
	StaleAfter time.Duration

	// DebugEveryN logs FormatDebug every N cycles; zero disables it.
	DebugEveryN    int
	LogTransitions bool
}

// Driver runs the controller against a sensor source and an actuator.
type Driver struct {
	controller *NavController
	source     SensorSource
	actuator   Actuator
	opts       DriverOptions
	log        *slog.Logger

	lastSeq   uint64
	lastFresh time.Time
	stale     bool
	cycles    uint64
}

// NewDriver wires a controller to its source and actuator.
func NewDriver(controller *NavController, source SensorSource, actuator Actuator, opts DriverOptions) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = navlog.L()
	}
	d := &Driver{
		controller: controller,
		source:     source,
		actuator:   actuator,
		opts:       opts,
		log:        logger,
	}
	if opts.LogTransitions {
		controller.OnTransition = func(t Transition) {
			logger.Info("regime change",
				"from", t.From.String(),
				"to", t.To.String(),
				"after", t.After.Round(time.Millisecond),
			)
		}
	}
	return d
}

// Cycles returns the number of controller updates run so far.
func (d *Driver) Cycles() uint64 { return d.cycles }

// Stale reports whether the last tick held the car for lack of sensor data.
func (d *Driver) Stale() bool { return d.stale }

// Tick runs one cycle at now and sends the resulting command. When no new
// reading has arrived within StaleAfter the controller is not updated and a
// center/stop command is sent instead.
func (d *Driver) Tick(now time.Time) (DriveCommand, error) {
	snap, seq := d.source.Snapshot()
	if seq != d.lastSeq {
		d.lastSeq = seq
		d.lastFresh = now
	}

	if d.isStale(now) {
		if !d.stale {
			d.log.Warn("sensor data stale, holding", "seq", seq, "regime", d.controller.Regime().String())
		}
		d.stale = true
		cfg := d.controller.Config()
		cmd := DriveCommand{
			T:        d.controller.Elapsed(now),
			Regime:   d.controller.Regime(),
			Steering: cfg.SteerCenter,
			Throttle: cfg.ThrottleStop,
		}
		return cmd, d.actuator.Drive(cmd)
	}
	if d.stale {
		d.log.Info("sensor data resumed", "seq", seq)
		d.stale = false
	}

	cmd := d.controller.UpdateAt(now, snap)
	d.cycles++

	if len(d.opts.Recorders) > 0 {
		rec := NewCycleRecord(snap, d.controller.LastPattern(), cmd, d.controller.InRegime(now))
		for _, r := range d.opts.Recorders {
			r.Record(rec)
		}
	}
	if n := d.opts.DebugEveryN; n > 0 && d.cycles%uint64(n) == 0 {
		d.log.Debug(d.controller.FormatDebug(snap))
	}

	return cmd, d.actuator.Drive(cmd)
}

// isStale is true before the first reading and when the sequence has not
// moved for longer than StaleAfter.
func (d *Driver) isStale(now time.Time) bool {
	if d.lastSeq == 0 {
		return true
	}
	return d.opts.StaleAfter > 0 && now.Sub(d.lastFresh) > d.opts.StaleAfter
}

// Run ticks every period until ctx is done, then stops the controller and
// sends the final command.
func (d *Driver) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return invalid("period must be > 0")
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var failures uint64
	for {
		select {
		case <-ctx.Done():
			err := d.Shutdown()
			d.log.Info("navigation stopped", "cycles", d.cycles, "send_failures", failures)
			return err
		case now := <-ticker.C:
			if _, err := d.Tick(now); err != nil {
				failures++
				if failures == 1 || failures%100 == 0 {
					d.log.Warn("drive command not delivered", "failures", failures, "err", err)
				}
			}
		}
	}
}

// Shutdown enters RegimeStopped and delivers the center/stop command.
func (d *Driver) Shutdown() error {
	cmd := d.controller.Stop()
	if err := d.actuator.Drive(cmd); err != nil {
		return fmt.Errorf("send stop command: %w", err)
	}
	return nil
}

type liveStore struct {
	mu   sync.RWMutex
	last SensorSnapshot
	seq  uint64
}

// Update stores the latest snapshot and advances the sequence counter.
func (s *liveStore) Update(snap SensorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	s.seq++
}

// Snapshot returns the most recent snapshot and its sequence number.
func (s *liveStore) Snapshot() (SensorSnapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.seq
}

// startUDPListener spawns a goroutine that listens for sensor packets until
// ctx is done. It returns the bound address.
func startUDPListener(ctx context.Context, cfg SensorConfig, store *liveStore, logger *slog.Logger) (net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve sensor addr %q: %w", cfg.UDPAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen sensor addr %q: %w", cfg.UDPAddr, err)
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		buf := make([]byte, bufSize)
		var rejected uint64
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
			snap, _, _, err := ParseSensorPacket(buf[:n])
			if err != nil {
				rejected++
				if rejected == 1 || rejected%100 == 0 {
					logger.Warn("sensor packet rejected", "rejected", rejected, "err", err)
				}
				continue
			}
			store.Update(snap)
		}
	}()

	return conn.LocalAddr(), nil
}

// ParseSensorPacket parses "L,FL,C,FR,R" or "t,L,FL,C,FR,R" payloads.
// The boolean reports whether a sender timestamp was present.
func ParseSensorPacket(b []byte) (SensorSnapshot, float64, bool, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return SensorSnapshot{}, 0, false, fmt.Errorf("%w: empty payload", ErrBadPacket)
	}

	parts := strings.Split(s, ",")
	if len(parts) != 5 && len(parts) != 6 {
		return SensorSnapshot{}, 0, false, fmt.Errorf("%w: expected 5 or 6 fields, got %d", ErrBadPacket, len(parts))
	}

	var t float64
	var err error
	hasT := len(parts) == 6
	if hasT {
		t, err = parseF64(parts[0])
		if err != nil {
			return SensorSnapshot{}, 0, false, fmt.Errorf("%w: timestamp: %v", ErrBadPacket, err)
		}
		parts = parts[1:]
	}

	var v [5]float64
	for i, p := range parts {
		v[i], err = parseF64(p)
		if err != nil {
			return SensorSnapshot{}, 0, false, fmt.Errorf("%w: field %d: %v", ErrBadPacket, i, err)
		}
	}
	return SnapshotFromValues(v), t, hasT, nil
}

// parseF64 parses a float from a CSV field.
func parseF64(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
