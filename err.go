package pbgateway

import (
	"errors"
	"fmt"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/queue"
)

var (
	// ErrClosed is returned for work submitted after Close.
	ErrClosed = queue.ErrClosed

	ErrNoURL = errors.New("pocketbase url not set")
)

// AuthenticationError is returned once every login attempt has failed.
type AuthenticationError struct {
	Attempts int
	// Err is the failure of the last attempt.
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RequestError wraps the failure of one queued callback.
type RequestError = queue.RequestError
