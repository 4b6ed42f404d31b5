package connection

import "fmt"

// Status is the last observed state of the link to PocketBase.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

func (s Status) String() string {
	return string(s)
}

// TransitionTo validates a status change and returns the new status.
//
// The reachable edges are:
//
//	disconnected -> connecting          login started
//	connected    -> connecting          re-login after the session expired
//	connecting   -> connected           login succeeded
//	connecting   -> disconnected        login retries exhausted
//	connected    -> disconnected        health probe failed
//
// Anything else, including a status transitioning to itself, is rejected.
func (s Status) TransitionTo(newStatus Status) (Status, error) {
	switch s {
	case StatusDisconnected:
		if newStatus == StatusConnecting {
			return newStatus, nil
		}
	case StatusConnecting:
		switch newStatus {
		case StatusConnected, StatusDisconnected:
			return newStatus, nil
		}
	case StatusConnected:
		switch newStatus {
		case StatusConnecting, StatusDisconnected:
			return newStatus, nil
		}
	}

	return s, fmt.Errorf("invalid status transition from %v to %v", s, newStatus)
}
