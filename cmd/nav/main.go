package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	navlog "minicar-nav/internal/log"
	"minicar-nav/wall_nav"
)

func main() {
	var configPath string
	var sensorAddr string
	var outputAddr string
	var logDir string
	var telemetryAddr string
	var logLevel string
	var followSide string
	var preset string
	var check bool
	flag.StringVar(&configPath, "config", "", "Path to JSON or YAML config (defaults when empty).")
	flag.StringVar(&sensorAddr, "sensor-addr", "", "Override sensor UDP listen addr (host:port).")
	flag.StringVar(&outputAddr, "output-addr", "", "Override actuator UDP addr (host:port).")
	flag.StringVar(&logDir, "log-dir", "", "Enable the CSV drive log in this directory.")
	flag.StringVar(&telemetryAddr, "telemetry-addr", "", "Enable the telemetry server on this addr.")
	flag.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error).")
	flag.StringVar(&followSide, "follow", "", "Override the followed wall (left or right).")
	flag.StringVar(&preset, "preset", "default", "Controller tuning the config file starts from (default or cautious).")
	flag.BoolVar(&check, "check", false, "Validate the config and exit.")
	flag.Parse()

	cfg := wall_nav.DefaultAppConfig()
	controller, err := wall_nav.ControllerPreset(preset)
	if err != nil {
		fatal(err)
	}
	cfg.Controller = controller
	if configPath != "" {
		loaded, err := wall_nav.LoadConfigOnto(configPath, cfg)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}

	if sensorAddr != "" {
		cfg.Sensors.UDPAddr = sensorAddr
	}
	if outputAddr != "" {
		cfg.Output.UDPAddr = outputAddr
	}
	if logDir != "" {
		cfg.Recorder.Enabled = true
		cfg.Recorder.Dir = logDir
	}
	if telemetryAddr != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Addr = telemetryAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if followSide != "" {
		side, err := wall_nav.ParseSide(followSide)
		if err != nil {
			fatal(fmt.Errorf("invalid -follow: %w", err))
		}
		cfg.Controller.FollowSide = side
	}

	navlog.Init(cfg.Log.Level)
	navlog.Debug("config resolved", "path", configPath, "preset", preset, "hz", cfg.Hz)

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	if cfg.Output.UDPAddr == "" {
		navlog.Warn("no output address, drive commands are dropped")
	}
	if check {
		navlog.Info("config ok", "hz", cfg.Hz, "follow", cfg.Controller.FollowSide)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := wall_nav.RunLive(ctx, cfg, navlog.L()); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	navlog.Error("nav failed", "err", err)
	os.Exit(1)
}
