//go:build unix

package transport

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

// Sender is the producing half of the rendezvous channel. It binds the
// well-known rendezvous path, waits for the single expected peer and
// transmits one descriptor. The channel is single-use: after SendFd the
// listening socket is closed and no further transfer is possible.
type Sender struct {
	logger *slog.Logger
	path   string

	listenFd int
	state    SenderState
}

func NewSender(logger *slog.Logger, path string) *Sender {
	return &Sender{
		logger: logger,
		path:   path,

		listenFd: -1,
	}
}

// State reports where the sender is in its lifecycle
func (s *Sender) State() SenderState {
	return s.state
}

// Path is the rendezvous socket path the channel binds
func (s *Sender) Path() string {
	return s.path
}

// Listen opens the rendezvous socket, removes any stale socket file left by a
// previous run, binds and listens with a backlog of one. Failures are not
// retried- a bind failure means the path is unusable and the sample cannot
// run.
func (s *Sender) Listen() error {
	s.logger.Debug("Sender::Listen")

	if s.state != SenderIdle {
		return errors.Errorf("attempted to listen on a channel in state %s", s.state.String())
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return errors.Wrap(err, "failed to create socket")
	}

	// A previous run leaves its socket file on disk- bind would fail on it
	removeErr := os.Remove(s.path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		_ = unix.Close(fd)
		return errors.Wrapf(removeErr, "failed to remove stale rendezvous socket %s", s.path)
	}

	err = unix.Bind(fd, &unix.SockaddrUnix{Name: s.path})
	if err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "failed to bind socket to %s", s.path)
	}

	// A single peer is expected
	err = unix.Listen(fd, 1)
	if err != nil {
		_ = unix.Close(fd)
		return errors.Wrap(err, "failed to listen on socket")
	}

	s.listenFd = fd
	s.state = SenderListening

	return nil
}

// SendFd blocks until the peer connects, then transmits fd as SCM_RIGHTS
// ancillary data alongside a single payload byte. On success both the
// accepted connection and the listening socket are closed (the channel is
// single-use) and fd itself is closed- the kernel has duplicated the
// underlying description into the peer, and the local descriptor number has
// no further use here.
//
// There is no accept timeout. The caller coordinates process startup order;
// a consumer that never connects blocks this call forever.
func (s *Sender) SendFd(fd int) error {
	s.logger.Debug("Sender::SendFd")

	if s.state != SenderListening {
		return errors.Errorf("attempted to send on a channel in state %s", s.state.String())
	}

	s.logger.Info("waiting for importer to connect", slog.String("path", s.path))

	// Blocking
	connFd, _, err := unix.Accept(s.listenFd)
	if err != nil {
		return errors.Wrap(err, "failed to accept connection")
	}

	err = sendRights(connFd, fd)

	_ = unix.Close(connFd)
	_ = unix.Close(s.listenFd)
	s.listenFd = -1

	if err != nil {
		s.state = SenderClosed
		return err
	}

	_ = unix.Close(fd)
	s.state = SenderSent

	s.logger.Info("fd sent", slog.Int("fd", fd))

	return nil
}

// Close tears down the listening socket if Listen succeeded but SendFd never
// ran. The rendezvous path is deliberately left on disk, matching the
// original samples- the next Listen unlinks it.
func (s *Sender) Close() error {
	s.logger.Debug("Sender::Close")

	if s.state == SenderClosed {
		return errors.New("attempted to close a channel twice")
	}

	if s.listenFd >= 0 {
		_ = unix.Close(s.listenFd)
		s.listenFd = -1
	}
	s.state = SenderClosed

	return nil
}
