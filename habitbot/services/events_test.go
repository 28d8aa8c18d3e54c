package services

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestConfirmTracker_MatchesByTag(t *testing.T) {
	tracker := newConfirmTracker()
	first := tracker.expect(1)
	second := tracker.expect(2)

	assert.True(t, tracker.resolve(amqp.Confirmation{DeliveryTag: 2, Ack: false}))
	assert.True(t, tracker.resolve(amqp.Confirmation{DeliveryTag: 1, Ack: true}))

	assert.True(t, <-first)
	assert.False(t, <-second)
}

func TestConfirmTracker_LateConfirmIsDropped(t *testing.T) {
	tracker := newConfirmTracker()
	tracker.expect(1)
	tracker.forget(1)
	next := tracker.expect(2)

	assert.False(t, tracker.resolve(amqp.Confirmation{DeliveryTag: 1, Ack: false}))
	select {
	case <-next:
		t.Fatal("confirm for tag 1 was delivered to tag 2")
	default:
	}

	assert.True(t, tracker.resolve(amqp.Confirmation{DeliveryTag: 2, Ack: true}))
	assert.True(t, <-next)
}

func TestConfirmTracker_RunFailsPendingOnClose(t *testing.T) {
	tracker := newConfirmTracker()
	acked := tracker.expect(1)
	pending := tracker.expect(2)

	confirms := make(chan amqp.Confirmation, 2)
	confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	confirms <- amqp.Confirmation{DeliveryTag: 7, Ack: true}
	close(confirms)
	tracker.run(confirms)

	assert.True(t, <-acked)
	_, ok := <-pending
	assert.False(t, ok, "waiters are released when the channel closes")
}
