//go:build windows
// +build windows

// File: transport/tcp/sockopts_windows.go
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"net"

	"golang.org/x/sys/windows"
)

// tuneSocket disables Nagle's algorithm on the dialed socket, mirroring
// the Linux tuning path via the windows syscall package instead of unix.
func tuneSocket(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
