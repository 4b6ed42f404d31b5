package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanzhaoK/admin-platform-sub000/pkg/connection"
)

func change(from, to connection.Status) StatusChange {
	return StatusChange{From: from, To: to, At: time.Now()}
}

func TestHubDelivers(t *testing.T) {
	h := NewHub()
	ch1, unsub1 := h.Subscribe()
	ch2, unsub2 := h.Subscribe()
	defer unsub2()
	assert.Equal(t, 2, h.Subscribers())

	require.NoError(t, h.Publish(context.Background(), change(connection.StatusDisconnected, connection.StatusConnecting)))

	got := <-ch1
	assert.Equal(t, connection.StatusConnecting, got.To)
	got = <-ch2
	assert.Equal(t, connection.StatusDisconnected, got.From)

	unsub1()
	unsub1()
	_, open := <-ch1
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	defer unsub()

	for i := 0; i < DefaultBuffer+5; i++ {
		require.NoError(t, h.Publish(context.Background(), change(connection.StatusConnected, connection.StatusDisconnected)))
	}
	assert.Len(t, ch, DefaultBuffer)
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()

	h.Close()
	_, open := <-ch
	assert.False(t, open)
	unsub()

	late, _ := h.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, StatusChange) error { return f.err }

func TestMulti(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe()
	defer unsub()

	boom := errors.New("boom")
	m := Multi{failingPublisher{err: boom}, h}

	err := m.Publish(context.Background(), change(connection.StatusConnecting, connection.StatusConnected))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, connection.StatusConnected, (<-ch).To, "one failing publisher does not block the rest")
}
