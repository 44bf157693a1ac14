package meetclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionsDispatchOrder(t *testing.T) {
	subs := NewSubscriptions()
	var calls []string
	subs.On("chat", func(json.RawMessage) { calls = append(calls, "first") })
	subs.On("chat", func(json.RawMessage) { calls = append(calls, "second") })
	subs.On("other", func(json.RawMessage) { calls = append(calls, "other") })

	subs.Dispatch("chat", nil)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSubscriptionsTeardownOnce(t *testing.T) {
	subs := NewSubscriptions()
	calls := 0
	subs.On("chat", func(json.RawMessage) { calls++ })

	subs.Teardown()
	subs.Teardown() // second teardown is a no-op, not a panic

	subs.Dispatch("chat", nil)
	assert.Zero(t, calls)
	assert.False(t, subs.Active())

	// Handlers from a dead session cannot leak into a reconnect.
	subs.On("chat", func(json.RawMessage) { calls++ })
	subs.Dispatch("chat", nil)
	assert.Zero(t, calls)
}
