package dispatch

import (
	"context"
)

// Transport hands a composed message to an external gateway. This module
// owns no transport credentials or protocol details.
type Transport interface {
	Send(ctx context.Context, recipient, body string, priority Priority) (bool, error)
}

// TransportMap routes a message's channel to its transport.
type TransportMap map[Channel]Transport

// ConnectivityProbe answers "can we reach the outside world right now".
// When it says no, a flush is a no-op rather than a burst of failures.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}

// Escalator is invoked once a message reaches the terminal failed state, so
// the failure is surfaced on a secondary channel instead of dying quietly.
type Escalator interface {
	Escalate(ctx context.Context, msg QueuedAlertMessage)
}

// AlwaysOnline is the probe for deployments without a gateway health source.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(ctx context.Context) bool { return true }
