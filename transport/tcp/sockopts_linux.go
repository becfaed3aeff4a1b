//go:build linux
// +build linux

// File: transport/tcp/sockopts_linux.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket disables Nagle's algorithm (TCP_NODELAY). Keepalive is not
// set here; net.Dialer configures it when the connection is dialed.
func tuneSocket(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
