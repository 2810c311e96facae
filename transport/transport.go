// Package transport carries a single file descriptor from one process to
// another over a UNIX-domain stream socket, using SCM_RIGHTS ancillary data.
//
// The channel is a deliberate rendezvous: the Sender blocks in accept until
// the Receiver connects, and the Receiver blocks in recvmsg until the Sender
// transmits. There are no timeouts, retries or reconnects- the two processes
// coordinate their startup order externally, and a misordered launch blocks
// (sender side) or fails immediately (receiver side). Each channel instance
// transfers exactly one descriptor and then closes.
package transport

// FdNotReceived is the sentinel descriptor value reported when a receive
// completes without a well-formed rights message. Callers must treat it as
// fatal- it is never a usable descriptor.
const FdNotReceived = -1

// SenderState describes where a Sender is in its single-use lifecycle
type SenderState uint32

const (
	// SenderIdle indicates the rendezvous socket has not been opened yet
	SenderIdle SenderState = iota
	// SenderListening indicates the socket is bound to the rendezvous path
	// and listening for the one expected peer
	SenderListening
	// SenderSent indicates the descriptor has been transmitted
	SenderSent
	// SenderClosed indicates the channel has been torn down
	SenderClosed
)

var senderStateMapping = make(map[SenderState]string)

func (s SenderState) String() string {
	return senderStateMapping[s]
}

func init() {
	senderStateMapping[SenderIdle] = "SenderIdle"
	senderStateMapping[SenderListening] = "SenderListening"
	senderStateMapping[SenderSent] = "SenderSent"
	senderStateMapping[SenderClosed] = "SenderClosed"
}

// ReceiverState describes where a Receiver is in its single-use lifecycle
type ReceiverState uint32

const (
	// ReceiverIdle indicates no connection has been attempted yet
	ReceiverIdle ReceiverState = iota
	// ReceiverConnected indicates the receiver is connected to a listening
	// sender
	ReceiverConnected
	// ReceiverReceived indicates the descriptor has been read out
	ReceiverReceived
	// ReceiverClosed indicates the connection has been torn down
	ReceiverClosed
)

var receiverStateMapping = make(map[ReceiverState]string)

func (s ReceiverState) String() string {
	return receiverStateMapping[s]
}

func init() {
	receiverStateMapping[ReceiverIdle] = "ReceiverIdle"
	receiverStateMapping[ReceiverConnected] = "ReceiverConnected"
	receiverStateMapping[ReceiverReceived] = "ReceiverReceived"
	receiverStateMapping[ReceiverClosed] = "ReceiverClosed"
}
