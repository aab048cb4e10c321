package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New[string]()
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()
	bus.Publish("hello")

	for _, sub := range []<-chan string{a, b} {
		select {
		case got := <-sub:
			assert.Equal(t, "hello", got)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := New[int]()
	defer bus.Close()

	sub := bus.Subscribe()
	// Fill the buffer past capacity; the publisher must never block.
	for i := 0; i < 64; i++ {
		bus.Publish(i)
	}
	assert.Equal(t, 16, len(sub))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New[int]()
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)

	// Publishing after unsubscribe must not panic.
	bus.Publish(1)
}

func TestClose(t *testing.T) {
	bus := New[int]()
	sub := bus.Subscribe()
	bus.Close()

	_, ok := <-sub
	assert.False(t, ok)

	// Subscribing after close yields a closed channel.
	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	// Close is idempotent.
	bus.Close()
}
