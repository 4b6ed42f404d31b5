package pbgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/metrics"
)

// HealthCheck probes PocketBase's health endpoint and reports whether it
// answered. It never returns an error or panics and changes no client state.
func (c *Client) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug().Str("panic", fmt.Sprint(r)).Msg("health probe panicked")
			ok = false
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	err := c.transport.Health(ctx)
	if err != nil {
		metrics.HealthChecksTotal.WithLabelValues("failure").Inc()
		c.logger.Debug().Err(err).Msg("health probe failed")
		return false
	}

	metrics.HealthChecksTotal.WithLabelValues("success").Inc()
	return true
}

func (c *Client) healthLoop() {
	defer close(c.healthDone)

	ticker := time.NewTicker(c.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.healthCtx.Done():
			return
		case <-ticker.C:
		}

		c.probe()
	}
}

func (c *Client) probe() {
	ok := c.HealthCheck(c.healthCtx)

	// Cleanup raced the probe; drop the result.
	if c.healthCtx.Err() != nil {
		return
	}

	c.probeMu.Lock()
	first := !c.probed
	changed := first || c.reachable != ok
	c.probed = true
	c.reachable = ok
	c.lastProbe = time.Now()
	c.probeMu.Unlock()

	if !ok {
		c.statusMu.Lock()
		if c.session.Lost() {
			c.statusChanged(StatusConnected, StatusDisconnected, "health probe failed")
		}
		c.statusMu.Unlock()
	}

	switch {
	case !changed:
	case ok && !first:
		c.logger.Info().Str("url", c.cfg.URL).Msg("pocketbase is reachable again")
	case !ok:
		c.logger.Warn().Str("url", c.cfg.URL).Msg("pocketbase is unreachable")
	}
}
