// Package rcon is the administration protocol client used to run console
// commands on game servers that expose RCON.
package rcon

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorcon/rcon"
)

// DefaultTimeout bounds dial, authentication and each command round trip.
const DefaultTimeout = 5 * time.Second

// ErrAuthFailed is returned when the server rejects the password.
var ErrAuthFailed = rcon.ErrAuthFailed

// Conn is an authenticated RCON connection.
type Conn interface {
	Execute(command string) (string, error)
	Close() error
}

// Dialer opens authenticated connections.
type Dialer interface {
	Dial(addr, password string) (Conn, error)
}

// NetDialer dials real RCON servers over TCP.
type NetDialer struct {
	Timeout time.Duration
}

func (d NetDialer) Dial(addr, password string) (Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := rcon.Dial(addr, password,
		rcon.SetDialTimeout(timeout),
		rcon.SetDeadline(timeout),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Exec opens a connection, runs one command and closes the connection.
func Exec(d Dialer, addr, password, command string) (string, error) {
	conn, err := d.Dial(addr, password)
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return "", fmt.Errorf("rcon authenticate %s: %w", addr, err)
		}
		return "", fmt.Errorf("rcon connect %s: %w", addr, err)
	}
	defer conn.Close()

	out, err := conn.Execute(command)
	if err != nil {
		return "", fmt.Errorf("rcon execute on %s: %w", addr, err)
	}
	return out, nil
}
