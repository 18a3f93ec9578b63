package server

import (
	"fmt"
	"net"

	"github.com/ayanrajpoot10/tlsgate/internal/request"
	"github.com/ayanrajpoot10/tlsgate/internal/tunnel"
)

// State is a step of a session's lifecycle.
type State int

const (
	StateAccepted State = iota
	StateHandshaking
	StateAwaitingRequest
	StateDispatching
	StateTunneling
	StateCompleted
	StateRejected
	StateFailed
)

var stateNames = [...]string{
	StateAccepted:        "accepted",
	StateHandshaking:     "handshaking",
	StateAwaitingRequest: "awaiting-request",
	StateDispatching:     "dispatching",
	StateTunneling:       "tunneling",
	StateCompleted:       "completed",
	StateRejected:        "rejected",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome describes how a connection ended. It is one of MethodRejected,
// DestinationRejected, TunnelCompleted or Failed, and exists for reporting
// only.
type Outcome interface {
	fmt.Stringer
	isOutcome()
}

// MethodRejected is a request with a method other than CONNECT.
type MethodRejected struct {
	Method string
}

// DestinationRejected is a CONNECT target that did not resolve
// (Response is BadRequest) or is not allowed by policy (Forbidden).
type DestinationRejected struct {
	Target   string
	Response request.Response
}

// TunnelCompleted is a tunnel whose two directions both reached end-of-stream.
type TunnelCompleted struct {
	Client net.Addr
	Dest   net.Addr
	Stats  tunnel.Stats
}

// Failed is a connection that ended with an error in the given stage.
type Failed struct {
	Stage State
	Err   error
}

func (MethodRejected) isOutcome()      {}
func (DestinationRejected) isOutcome() {}
func (TunnelCompleted) isOutcome()     {}
func (Failed) isOutcome()              {}

func (o MethodRejected) String() string {
	return fmt.Sprintf("%s is not supported", o.Method)
}

func (o DestinationRejected) String() string {
	if o.Response == request.BadRequest {
		return fmt.Sprintf("%s is not a resolvable destination", o.Target)
	}
	return fmt.Sprintf("%s is not an allowed destination", o.Target)
}

func (o TunnelCompleted) String() string {
	return fmt.Sprintf("%s <-> %s: %d bytes up, %d bytes down",
		o.Client, o.Dest, o.Stats.ClientToDest, o.Stats.DestToClient)
}

func (o Failed) String() string {
	return fmt.Sprintf("failed while %s: %v", o.Stage, o.Err)
}
