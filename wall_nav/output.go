package wall_nav

import (
	"fmt"
	"net"
)

// OutputSender sends drive commands over UDP as CSV to the actuator driver.
type OutputSender struct {
	conn *net.UDPConn
}

// NewOutputSender creates a UDP sender for the given address. An empty
// address yields a sender that drops every command.
func NewOutputSender(addr string) (*OutputSender, error) {
	if addr == "" {
		return &OutputSender{}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve output addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial output addr %q: %w", addr, err)
	}
	return &OutputSender{conn: conn}, nil
}

// Close releases the UDP socket.
func (s *OutputSender) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Drive writes "steering,throttle,REGIME" as a CSV payload.
func (s *OutputSender) Drive(cmd DriveCommand) error {
	if s == nil || s.conn == nil {
		return nil
	}
	_, err := s.conn.Write(FormatCommand(cmd))
	return err
}

// FormatCommand encodes a command as the actuator wire payload.
func FormatCommand(cmd DriveCommand) []byte {
	return []byte(fmt.Sprintf("%.4f,%.4f,%s", cmd.Steering, cmd.Throttle, cmd.Regime.String()))
}
