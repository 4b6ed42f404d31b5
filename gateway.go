package pbgateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/metrics"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/notify"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/queue"
)

type Status = connection.Status

const (
	StatusDisconnected = connection.StatusDisconnected
	StatusConnecting   = connection.StatusConnecting
	StatusConnected    = connection.StatusConnected
)

var allStatuses = []string{
	string(StatusDisconnected),
	string(StatusConnecting),
	string(StatusConnected),
}

const publishTimeout = 2 * time.Second

// Executor issues one call to PocketBase on behalf of the caller.
type Executor interface {
	Execute(ctx context.Context, req connection.Request) (*connection.Response, error)
}

// SessionInfo is a point-in-time view of the client, safe to serialize.
type SessionInfo struct {
	connection.Snapshot
	Reachable  bool      `json:"reachable"`
	LastProbe  time.Time `json:"last_probe,omitempty"`
	QueueDepth int       `json:"queue_depth"`
}

type Client struct {
	cfg       Config
	transport connection.Transport
	session   *connection.Session
	queue     *queue.Queue
	logger    zerolog.Logger
	publisher notify.Publisher

	// authMu serializes logins so concurrent callers share one attempt.
	authMu sync.Mutex
	// statusMu keeps each status edge and its report in the same order.
	statusMu sync.Mutex

	probeMu   sync.Mutex
	probed    bool
	reachable bool
	lastProbe time.Time

	healthCtx    context.Context
	healthCancel context.CancelFunc
	healthDone   chan struct{}
}

var _ Executor = (*Client)(nil)

// New builds a client and starts its health loop. It does not log in; call
// EnsureAuth or Authenticate for that.
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:        cfg.withDefaults(),
		session:    connection.NewSession(),
		logger:     zerolog.Nop(),
		healthDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		if c.cfg.URL == "" {
			return nil, ErrNoURL
		}
		if u, err := url.Parse(c.cfg.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid pocketbase url %q", c.cfg.URL)
		}
		conn, err := connection.NewHTTPConnection(connection.NewConnectionParams{
			BaseURL:  c.cfg.URL,
			AuthPath: c.cfg.AuthPath,
			Timeout:  c.cfg.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		c.transport = conn
	}

	c.queue = queue.New(queue.Options{
		Spacing:    c.cfg.QueueSpacing,
		Timeout:    c.cfg.RequestTimeout,
		OnDispatch: c.session.Touch,
		Logger:     c.logger,
	})

	metrics.SetStatus(string(StatusDisconnected), allStatuses...)

	c.healthCtx, c.healthCancel = context.WithCancel(context.Background())
	go c.healthLoop()

	return c, nil
}

// Authenticate logs in with the configured admin credentials. A valid session
// is reused without a network call. On failure the attempt is repeated after
// AuthRetryDelay, up to AuthAttempts times in total.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.session.Valid() {
		return nil
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()

	// Another caller may have logged in while we waited.
	if c.session.Valid() {
		return nil
	}

	c.transition(StatusConnecting, "authenticating")

	var (
		attempts int
		lastErr  error
		token    string
	)
	op := func() error {
		attempts++

		actx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		t, err := c.transport.AuthWithPassword(actx, c.cfg.Identity, c.cfg.Password)
		if err != nil {
			lastErr = err
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			if errors.Is(err, connection.ErrEmptyIdentity) {
				return backoff.Permanent(err)
			}
			return err
		}

		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		token = t
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.AuthRetryDelay), uint64(c.cfg.AuthAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		c.logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Int("max_attempts", c.cfg.AuthAttempts).
			Dur("retry_in", next).
			Msg("pocketbase login failed")
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		metrics.AuthFailuresTotal.Inc()
		c.transition(StatusDisconnected, "authentication failed")
		c.logger.Error().Err(lastErr).Int("attempts", attempts).Msg("pocketbase authentication failed")
		return &AuthenticationError{Attempts: attempts, Err: lastErr}
	}

	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	from, err := c.session.Authenticated(token)
	if err != nil {
		c.logger.Warn().Err(err).Msg("unexpected status after login")
		return nil
	}
	c.statusChanged(from, StatusConnected, "authenticated")

	return nil
}

// EnsureAuth returns immediately while the session is valid, otherwise it
// authenticates.
func (c *Client) EnsureAuth(ctx context.Context) error {
	if c.session.Valid() {
		return nil
	}
	return c.Authenticate(ctx)
}

// QueueRequest appends fn to the serialized request queue. The returned handle
// resolves with fn's result, or with a *RequestError if fn failed.
func (c *Client) QueueRequest(ctx context.Context, fn queue.Func) *queue.Pending {
	return c.queue.Submit(ctx, fn)
}

// Queue is the typed form of QueueRequest that waits for the result.
func Queue[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	return queue.Do(ctx, c.queue, fn)
}

// Execute authenticates if needed and issues req directly, bypassing the queue.
// A 401 answer invalidates the session so the next call logs in again.
func (c *Client) Execute(ctx context.Context, req connection.Request) (*connection.Response, error) {
	if err := c.EnsureAuth(ctx); err != nil {
		return nil, err
	}

	token, _ := c.session.Token()
	c.session.Touch()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.transport.Do(ctx, token, req)
	metrics.RequestDurationSeconds.WithLabelValues("direct", metrics.Outcome(err)).Observe(time.Since(start).Seconds())

	var apiErr *connection.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		c.session.Invalidate()
		c.logger.Warn().Str("path", req.Path).Msg("pocketbase rejected the session token")
	}

	return res, err
}

// ExecuteQueued is Execute run through the request queue.
func (c *Client) ExecuteQueued(ctx context.Context, req connection.Request) (*connection.Response, error) {
	return Queue(ctx, c, func(ctx context.Context) (*connection.Response, error) {
		return c.Execute(ctx, req)
	})
}

// Config returns the effective settings, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) ConnectionStatus() Status {
	return c.session.Status()
}

func (c *Client) Session() SessionInfo {
	c.probeMu.Lock()
	reachable, lastProbe := c.reachable, c.lastProbe
	c.probeMu.Unlock()

	return SessionInfo{
		Snapshot:   c.session.Snapshot(),
		Reachable:  reachable,
		LastProbe:  lastProbe,
		QueueDepth: c.queue.Len(),
	}
}

// Cleanup stops the health loop and waits for it to exit. Nothing the loop
// does is observable after Cleanup returns. It is safe to call more than once.
func (c *Client) Cleanup() {
	c.healthCancel()
	<-c.healthDone
}

// Close stops the health loop and the request queue. Queued work that has not
// started is rejected with ErrClosed.
func (c *Client) Close() error {
	c.Cleanup()
	c.queue.Close()
	return nil
}

func (c *Client) transition(to Status, reason string) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	from, err := c.session.Transition(to)
	if err != nil {
		c.logger.Debug().Err(err).Msg("status unchanged")
		return
	}
	c.statusChanged(from, to, reason)
}

// statusChanged reports a transition that already happened. Callers hold
// statusMu from the session change until it returns.
func (c *Client) statusChanged(from, to Status, reason string) {
	metrics.SetStatus(string(to), allStatuses...)
	metrics.StatusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()

	c.logger.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("connection status changed")

	if c.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := c.publisher.Publish(ctx, notify.StatusChange{
		From:   from,
		To:     to,
		At:     time.Now(),
		Reason: reason,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("publish status change")
	}
}
