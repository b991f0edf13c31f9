package wall_nav

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	expvarmw "github.com/gofiber/fiber/v2/middleware/expvar"
	"github.com/gofiber/websocket/v2"

	"minicar-nav/internal/hub"
)

// TelemetryConfig controls the optional telemetry server. /debug/vars is
// served in the expvar format so jplot and friends can plot a live run.
type TelemetryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

var (
	varsOnce   sync.Once
	sensorVars *expvar.Map
	driveVars  *expvar.Map
	cycleVar   *expvar.Int
)

// publishedVars registers the expvar maps once per process.
func publishedVars() (*expvar.Map, *expvar.Map, *expvar.Int) {
	varsOnce.Do(func() {
		sensorVars = expvar.NewMap("sensors")
		driveVars = expvar.NewMap("drive")
		cycleVar = expvar.NewInt("cycles")
	})
	return sensorVars, driveVars, cycleVar
}

// Telemetry publishes every cycle over HTTP and a websocket stream.
type Telemetry struct {
	app    *fiber.App
	hub    *hub.Hub
	log    *slog.Logger
	cancel context.CancelFunc
	cfg    AppConfig

	sensors *expvar.Map
	drive   *expvar.Map
	cycles  *expvar.Int

	mu      sync.RWMutex
	latest  CycleRecord
	have    bool
	records atomic.Uint64
}

// StartTelemetry listens on cfg.Addr and serves telemetry until Close.
// It returns nil when telemetry is disabled.
func StartTelemetry(cfg TelemetryConfig, app AppConfig, logger *slog.Logger) (*Telemetry, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7070"
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry listen %q: %w", cfg.Addr, err)
	}

	t := NewTelemetry(app, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.hub.Run(ctx)
	go func() {
		if err := t.app.Listener(ln); err != nil {
			t.log.Error("telemetry server error", "err", err)
		}
	}()
	t.log.Info("telemetry listening", "addr", ln.Addr().String())
	return t, nil
}

// NewTelemetry builds the telemetry routes without listening.
func NewTelemetry(app AppConfig, logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	sensors, drive, cycles := publishedVars()
	t := &Telemetry{
		hub:     hub.New("telemetry", logger),
		log:     logger.With("component", "telemetry"),
		cfg:     app,
		sensors: sensors,
		drive:   drive,
		cycles:  cycles,
	}

	f := fiber.New(fiber.Config{
		AppName:               "minicar-nav telemetry",
		DisableStartupMessage: true,
	})
	f.Use(cors.New())
	f.Use(expvarmw.New())

	api := f.Group("/api")
	api.Get("/state", t.handleState)
	api.Get("/config", t.handleConfig)
	api.Get("/health", t.handleHealth)

	f.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	f.Get("/ws/telemetry", websocket.New(t.handleStream))

	t.app = f
	return t
}

// Record publishes one cycle.
func (t *Telemetry) Record(rec CycleRecord) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.latest = rec
	t.have = true
	t.mu.Unlock()
	t.records.Add(1)

	s := rec.Snapshot
	setFloat(t.sensors, "l", s.Left)
	setFloat(t.sensors, "fl", s.FrontLeft)
	setFloat(t.sensors, "c", s.Center)
	setFloat(t.sensors, "fr", s.FrontRight)
	setFloat(t.sensors, "r", s.Right)
	setFloat(t.drive, "steering", rec.Steering)
	setFloat(t.drive, "throttle", rec.Throttle)
	setFloat(t.drive, "regime", float64(rec.Regime))
	t.cycles.Add(1)

	if t.hub.ClientCount() > 0 {
		if err := t.hub.BroadcastJSON(rec); err != nil {
			t.log.Warn("telemetry encode failed", "err", err)
		}
	}
}

// Latest returns the most recent cycle, if any.
func (t *Telemetry) Latest() (CycleRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.have
}

// Close stops the hub and shuts the server down.
func (t *Telemetry) Close() error {
	if t == nil {
		return nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	return t.app.Shutdown()
}

func (t *Telemetry) handleState(c *fiber.Ctx) error {
	rec, ok := t.Latest()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no control cycle yet",
		})
	}
	return c.JSON(rec)
}

func (t *Telemetry) handleConfig(c *fiber.Ctx) error {
	return c.JSON(t.cfg)
}

func (t *Telemetry) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"records": t.records.Load(),
		"clients": t.hub.ClientCount(),
		"dropped": t.hub.Dropped(),
	})
}

func (t *Telemetry) handleStream(conn *websocket.Conn) {
	client := hub.NewClient(t.hub, conn)
	if client == nil {
		return
	}
	client.Run()
}

// setFloat updates an expvar.Float stored inside a map.
func setFloat(m *expvar.Map, key string, value float64) {
	if v := m.Get(key); v != nil {
		if f, ok := v.(*expvar.Float); ok {
			f.Set(value)
			return
		}
	}
	f := new(expvar.Float)
	f.Set(value)
	m.Set(key, f)
}
