package pbgateway

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/notify"
)

const (
	DefaultAuthAttempts   = 3
	DefaultAuthRetryDelay = time.Second
	DefaultQueueSpacing   = 100 * time.Millisecond
	DefaultHealthInterval = 60 * time.Second
	DefaultRequestTimeout = connection.DefaultTimeout
)

// Config holds the client settings. Zero values fall back to the defaults above.
type Config struct {
	// URL is the PocketBase base URL, e.g. http://localhost:8090.
	URL string
	// AuthPath overrides the admin login endpoint.
	AuthPath string

	Identity string
	Password string

	AuthAttempts   int
	AuthRetryDelay time.Duration
	QueueSpacing   time.Duration
	HealthInterval time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthPath == "" {
		c.AuthPath = connection.DefaultAuthPath
	}
	if c.AuthAttempts < 1 {
		c.AuthAttempts = DefaultAuthAttempts
	}
	if c.AuthRetryDelay <= 0 {
		c.AuthRetryDelay = DefaultAuthRetryDelay
	}
	if c.QueueSpacing <= 0 {
		c.QueueSpacing = DefaultQueueSpacing
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

type Option func(*Client)

// WithTransport replaces the HTTP connection built from Config.URL.
func WithTransport(t connection.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithStatusPublisher receives every connection status change.
func WithStatusPublisher(p notify.Publisher) Option {
	return func(c *Client) {
		c.publisher = p
	}
}
