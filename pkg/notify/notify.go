// Package notify fans connection status changes out to observers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
)

// StatusChange is one transition of the gateway's connection status.
type StatusChange struct {
	From   connection.Status `json:"from"`
	To     connection.Status `json:"to"`
	At     time.Time         `json:"at"`
	Reason string            `json:"reason,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, change StatusChange) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, change StatusChange) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
