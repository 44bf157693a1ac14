package meetclient

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoRequestResolvesExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var outcomes []bool
	req := NewVideoRequest(uuid.New(), "host", func(accepted bool) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, accepted)
	})

	req.Accept()
	// Late clicks and double resolution are ignored.
	req.Decline()
	req.Accept()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0])
}

func TestVideoRequestExpiryDenies(t *testing.T) {
	var mu sync.Mutex
	var outcomes []bool
	req := NewVideoRequest(uuid.New(), "host", func(accepted bool) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, accepted)
	})

	// Drive the deadline path directly rather than waiting 30 seconds.
	req.finish(false)
	// A click landing after expiry must not resolve a second time.
	req.Accept()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0])
}
