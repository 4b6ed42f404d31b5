package connection

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpirySkew treats a token as expired slightly before its exp claim so that a
// request started just before expiry does not reach the server with a dead token.
const ExpirySkew = 10 * time.Second

// Session is the shared authentication state of a gateway client.
// Every mutation happens under mu and never spans a network call.
type Session struct {
	mu sync.Mutex

	token       string
	valid       bool
	expiresAt   time.Time
	status      Status
	lastRequest time.Time

	now func() time.Time
}

// Snapshot is a copy of the session state safe to hand out.
type Snapshot struct {
	Valid       bool      `json:"valid"`
	Status      Status    `json:"status"`
	LastRequest time.Time `json:"last_request,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

func NewSession() *Session {
	return &Session{
		status: StatusDisconnected,
		now:    time.Now,
	}
}

// Valid reports whether the session holds a token that has not expired.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.validLocked()
}

func (s *Session) validLocked() bool {
	if !s.valid || s.token == "" {
		return false
	}
	if !s.expiresAt.IsZero() && !s.now().Add(ExpirySkew).Before(s.expiresAt) {
		return false
	}
	return true
}

// Token returns the current token and whether it is still usable.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token, s.validLocked()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Transition moves the status along a documented edge and returns the
// previous status. Invalid edges leave the session untouched.
func (s *Session) Transition(to Status) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to Status) (Status, error) {
	from := s.status
	next, err := from.TransitionTo(to)
	if err != nil {
		return from, err
	}
	s.status = next
	return from, nil
}

// Authenticated stores a fresh token and moves connecting -> connected.
func (s *Session) Authenticated(token string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.transitionLocked(StatusConnected)
	if err != nil {
		return from, err
	}

	s.token = token
	s.valid = true
	s.expiresAt = tokenExpiry(token)

	return from, nil
}

// Invalidate forces the next EnsureAuth to log in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valid = false
}

// Lost records a failed health probe: a connected session becomes disconnected
// and invalid. It reports whether anything changed.
func (s *Session) Lost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusConnected {
		return false
	}
	if _, err := s.transitionLocked(StatusDisconnected); err != nil {
		return false
	}
	s.valid = false
	return true
}

// Touch records that a request was just dispatched.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRequest = s.now()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Valid:       s.validLocked(),
		Status:      s.status,
		LastRequest: s.lastRequest,
		ExpiresAt:   s.expiresAt,
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// gateway cannot verify PocketBase's signing key and only needs the deadline.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
