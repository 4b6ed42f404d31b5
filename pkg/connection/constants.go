package connection

import (
	"errors"
	"time"
)

const (
	// DefaultTimeout bounds every outbound call to PocketBase.
	DefaultTimeout = 30 * time.Second

	// DefaultAuthPath is the admin password login endpoint of PocketBase.
	DefaultAuthPath = "/api/admins/auth-with-password"
	// HealthPath is the lightweight reachability endpoint of PocketBase.
	HealthPath = "/api/health"

	AuthorizationHeader = "Authorization"
)

var (
	ErrNoBaseURL     = errors.New("base url not set")
	ErrNoToken       = errors.New("auth response did not contain a token")
	ErrEmptyIdentity = errors.New("identity or password is empty")
)
