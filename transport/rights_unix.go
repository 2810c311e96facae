//go:build unix

package transport

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The ancillary-data mechanics live behind this seam so the state machines in
// sender.go and receiver.go never touch control-message layout directly.
// Only the modern msg_control layout is implemented- platforms that predate
// it (old msg_accrights systems) are not supported by this module.

// payloadByte is the one ordinary data byte sent alongside the rights
// message. The payload content is meaningless; at least one byte of real data
// is required to trigger delivery of ancillary data on a stream socket.
const payloadByte = '1'

func sendRights(connFd int, fd int) error {
	rights := unix.UnixRights(fd)

	err := unix.Sendmsg(connFd, []byte{payloadByte}, rights, nil, 0)
	if err != nil {
		return errors.Wrap(err, "failed to send fd")
	}

	return nil
}

func recvRights(connFd int) (int, error) {
	payload := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := unix.Recvmsg(connFd, payload, oob, 0)
	if err != nil {
		return FdNotReceived, errors.Wrap(err, "failed to receive fd")
	}
	if n < 1 {
		return FdNotReceived, errors.New("fd receive returned no payload- the sender closed without transmitting")
	}

	messages, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return FdNotReceived, errors.Wrap(err, "received malformed ancillary data")
	}
	if len(messages) != 1 {
		return FdNotReceived, errors.Errorf("expected exactly one control message, received %d", len(messages))
	}

	// ParseUnixRights rejects messages whose level or type is not
	// SOL_SOCKET/SCM_RIGHTS
	fds, err := unix.ParseUnixRights(&messages[0])
	if err != nil {
		return FdNotReceived, errors.Wrap(err, "received a control message that does not carry fd rights")
	}
	if len(fds) != 1 {
		return FdNotReceived, errors.Errorf("expected exactly one fd in the rights message, received %d", len(fds))
	}

	return fds[0], nil
}
