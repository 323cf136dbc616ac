// Package iodriver implements the I/O driver collaborator (§6): dialing
// outbound TCP connections and exposing the low-level hooks (socket
// fwmark) the rest of the client needs from the transport. Grounded on
// the teacher's net.Dialer-based dial helpers and its fwmark_linux.go /
// fwmark_other.go pair, which are kept nearly verbatim (platform-specific
// syscalls have no idiomatic cross-platform replacement).
package iodriver

import (
	"context"
	"net"
	"syscall"
	"time"
)

// Driver is the outbound connection contract the rest of the client
// depends on instead of net.Dialer directly, so tests can substitute a
// fake.
type Driver interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}

// NetDriver is the concrete net.Dialer-backed Driver, optionally marking
// every socket it creates with a firewall mark (Linux SO_MARK) for
// policy routing.
type NetDriver struct {
	Mark    uint32
	Timeout time.Duration
}

func NewNetDriver(mark uint32, timeout time.Duration) *NetDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NetDriver{Mark: mark, Timeout: timeout}
}

func (d *NetDriver) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: d.Timeout,
		Control: func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = setSocketMark(fd, d.Mark)
			})
			if err != nil {
				return err
			}
			return setErr
		},
	}
	return dialer.DialContext(ctx, network, address)
}
