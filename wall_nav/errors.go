package wall_nav

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnknownFormat is returned for config files that are neither JSON nor YAML.
	ErrUnknownFormat = errors.New("unknown config format")

	// ErrBadPacket is returned when a sensor datagram cannot be parsed.
	ErrBadPacket = errors.New("bad sensor packet")

	// ErrBadLogRow is returned when a drive log row cannot be replayed.
	ErrBadLogRow = errors.New("bad drive log row")
)
