//go:build unix

package transport

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

// Receiver is the consuming half of the rendezvous channel. It connects to
// the well-known rendezvous path and reads out the single descriptor the
// peer transmits.
type Receiver struct {
	logger *slog.Logger
	path   string

	connFd int
	state  ReceiverState
}

func NewReceiver(logger *slog.Logger, path string) *Receiver {
	return &Receiver{
		logger: logger,
		path:   path,

		connFd: -1,
	}
}

// State reports where the receiver is in its lifecycle
func (r *Receiver) State() ReceiverState {
	return r.state
}

// Path is the rendezvous socket path the channel connects to
func (r *Receiver) Path() string {
	return r.path
}

// Connect dials the rendezvous path. There is no retry or backoff: the
// consumer process is expected to start after the producer is listening, and
// a missing or listener-less path fails immediately and fatally.
func (r *Receiver) Connect() error {
	r.logger.Debug("Receiver::Connect")

	if r.state != ReceiverIdle {
		return errors.Errorf("attempted to connect a channel in state %s", r.state.String())
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return errors.Wrap(err, "failed to create socket")
	}

	err = unix.Connect(fd, &unix.SockaddrUnix{Name: r.path})
	if err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "failed to connect to %s- is the exporting process listening yet", r.path)
	}

	r.connFd = fd
	r.state = ReceiverConnected

	return nil
}

// RecvFd blocks until the peer transmits, then parses the ancillary data and
// returns the received descriptor. The returned descriptor is a new
// process-local fd referring to the peer's kernel memory object; it belongs
// to the caller (and to the driver, once imported).
//
// When the control message is absent, malformed or of the wrong type, RecvFd
// returns FdNotReceived alongside the error. Callers must never use the
// sentinel as a descriptor.
func (r *Receiver) RecvFd() (int, error) {
	r.logger.Debug("Receiver::RecvFd")

	if r.state != ReceiverConnected {
		return FdNotReceived, errors.Errorf("attempted to receive on a channel in state %s", r.state.String())
	}

	// Blocking
	fd, err := recvRights(r.connFd)

	_ = unix.Close(r.connFd)
	r.connFd = -1

	if err != nil {
		r.state = ReceiverClosed
		return FdNotReceived, err
	}

	r.state = ReceiverReceived

	r.logger.Info("fd received", slog.Int("fd", fd))

	return fd, nil
}

// Close tears down the connection if Connect succeeded but RecvFd never ran
func (r *Receiver) Close() error {
	r.logger.Debug("Receiver::Close")

	if r.state == ReceiverClosed {
		return errors.New("attempted to close a channel twice")
	}

	if r.connFd >= 0 {
		_ = unix.Close(r.connFd)
		r.connFd = -1
	}
	r.state = ReceiverClosed

	return nil
}
