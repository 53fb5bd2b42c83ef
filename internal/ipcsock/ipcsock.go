// Package ipcsock wraps the AF_UNIX SOCK_DGRAM socket ticosctl and the
// plugin shims use to reach the daemon (spec §6), built directly on
// golang.org/x/sys/unix rather than net.ListenUnixgram so shutdown(2)
// with SHUT_RD — required to unblock a blocked recvmsg on SIGTERM — is
// reachable; net.UnixConn exposes no such primitive.
package ipcsock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MaxDatagramSize bounds a single recvmsg call's buffer; IPC payloads
// (attribute JSON blobs) are expected to be well under this.
const MaxDatagramSize = 64 * 1024

// Socket is a bound AF_UNIX SOCK_DGRAM endpoint.
type Socket struct {
	fd   int
	path string
}

// Listen creates (or replaces) a SOCK_DGRAM socket bound to path.
func Listen(path string) (*Socket, error) {
	_ = os.Remove(path) // stale socket from a prior crash

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ipcsock: socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipcsock: bind %s: %w", path, err)
	}
	return &Socket{fd: fd, path: path}, nil
}

// Recv blocks in recvmsg until a datagram arrives, the socket is shut
// down for reads, or an error occurs.
func (s *Socket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	return n, err
}

// ShutdownRead calls shutdown(SHUT_RD) to unblock a pending recvmsg, the
// mechanism the supervisor uses to stop the IPC thread on SIGTERM/SIGHUP/
// SIGINT (spec §4.10).
func (s *Socket) ShutdownRead() error {
	return unix.Shutdown(s.fd, unix.SHUT_RD)
}

// Close releases the socket and unlinks its path.
func (s *Socket) Close() error {
	err := unix.Close(s.fd)
	_ = os.Remove(s.path)
	return err
}

// Send writes a single datagram to the socket at path, used by ticosctl
// and the coredump helper to talk to the running daemon.
func Send(path string, buf []byte) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("ipcsock: socket: %w", err)
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Sendto(fd, buf, 0, addr); err != nil {
		return fmt.Errorf("ipcsock: sendto %s: %w", path, err)
	}
	return nil
}
