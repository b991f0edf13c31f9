package wall_nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SensorConfig controls the UDP listener fed by the ranging-sensor driver.
type SensorConfig struct {
	UDPAddr      string  `json:"udp_addr" yaml:"udp_addr"`
	ReadBuffer   int     `json:"read_buffer" yaml:"read_buffer"`
	StaleSeconds float64 `json:"stale_seconds" yaml:"stale_seconds"`
}

// OutputConfig controls UDP output of drive commands.
type OutputConfig struct {
	UDPAddr string `json:"udp_addr" yaml:"udp_addr"`
}

// RecorderConfig controls the CSV drive log.
type RecorderConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Dir        string `json:"dir" yaml:"dir"`
	FlushEvery int    `json:"flush_every" yaml:"flush_every"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	EveryN      int    `json:"every_n" yaml:"every_n"`
	Transitions bool   `json:"transitions" yaml:"transitions"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Hz         float64          `json:"hz" yaml:"hz"`
	Controller ControllerConfig `json:"controller" yaml:"controller"`
	Sensors    SensorConfig     `json:"sensors" yaml:"sensors"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Recorder   RecorderConfig   `json:"recorder" yaml:"recorder"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// DefaultAppConfig returns a 25 Hz configuration with the default controller.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Hz:         25,
		Controller: DefaultControllerConfig(),
		Sensors: SensorConfig{
			UDPAddr:      "127.0.0.1:9100",
			ReadBuffer:   2048,
			StaleSeconds: 0.25,
		},
		Recorder: RecorderConfig{
			Dir:        "driving_logs",
			FlushEvery: 10,
		},
		Telemetry: TelemetryConfig{Addr: "127.0.0.1:7070"},
		Log: LogConfig{
			Level:       "info",
			EveryN:      5,
			Transitions: true,
		},
	}
}

// LoadConfig reads a JSON or YAML config from disk on top of DefaultAppConfig.
func LoadConfig(path string) (AppConfig, error) {
	return LoadConfigOnto(path, DefaultAppConfig())
}

// LoadConfigOnto reads a JSON or YAML config from disk on top of base.
// Keys absent from the file keep their base values.
func LoadConfigOnto(path string, base AppConfig) (AppConfig, error) {
	cfg := base
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Period is the control-cycle length.
func (c AppConfig) Period() time.Duration {
	return seconds(1 / c.Hz)
}

// Validate checks the loop settings and the controller configuration.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Hz <= 0 {
		errs = append(errs, invalid("hz must be > 0"))
	}
	if c.Sensors.StaleSeconds < 0 {
		errs = append(errs, invalid("sensors.stale_seconds must be >= 0"))
	}
	if c.Recorder.Enabled && c.Recorder.Dir == "" {
		errs = append(errs, invalid("recorder.dir must be set when the recorder is enabled"))
	}
	if err := c.Controller.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseSide converts "left"/"right" into a Side.
func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "left", "l":
		return SideLeft, nil
	case "right", "r":
		return SideRight, nil
	default:
		return SideLeft, fmt.Errorf("unknown side %q", value)
	}
}

// UnmarshalText lets sides be loaded from JSON and YAML strings.
func (sd *Side) UnmarshalText(b []byte) error {
	parsed, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*sd = parsed
	return nil
}

// MarshalText renders the side as "left" or "right".
func (sd Side) MarshalText() ([]byte, error) {
	return []byte(sd.String()), nil
}

// ParseRegime converts a regime name into a Regime.
func ParseRegime(value string) (Regime, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, r := range Regimes {
		if r.String() == normalized {
			return r, nil
		}
	}
	return RegimeInit, fmt.Errorf("unknown regime %q", value)
}

// UnmarshalText lets regimes be loaded from JSON and YAML strings.
func (r *Regime) UnmarshalText(b []byte) error {
	parsed, err := ParseRegime(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText renders the regime as its log name, e.g. WALL_FOLLOW.
func (r Regime) MarshalText() ([]byte, error) {
	if r < RegimeInit || r > RegimeStopped {
		return nil, fmt.Errorf("unknown regime %d", int(r))
	}
	return []byte(r.String()), nil
}

// invalid builds a validation error wrapping ErrInvalidConfig.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// seconds converts float seconds to a Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
