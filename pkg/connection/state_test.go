package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitionTo(t *testing.T) {
	all := []Status{StatusDisconnected, StatusConnecting, StatusConnected}
	allowed := map[Status][]Status{
		StatusDisconnected: {StatusConnecting},
		StatusConnecting:   {StatusConnected, StatusDisconnected},
		StatusConnected:    {StatusConnecting, StatusDisconnected},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			got, err := from.TransitionTo(to)
			if want {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, got)
			} else {
				require.Error(t, err, "%s -> %s", from, to)
				assert.Equal(t, from, got, "rejected transition must keep the old status")
			}
		}
	}
}

func TestStatusTransitionToUnknown(t *testing.T) {
	_, err := StatusConnected.TransitionTo(Status("reconnecting"))
	assert.EqualError(t, err, "invalid status transition from connected to reconnecting")
}
