package forceupdate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	first := b.Subscribe()
	second := b.Subscribe()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, b.Subscribers())

	n := b.Publish(Event{ID: "one", ProductPageURL: "https://apps.example/app"})
	assert.Equal(t, 2, n)

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, "one", ev.ID)
		default:
			t.Fatalf("subscription %s did not receive the event", sub.ID())
		}
	}
}

func TestBroadcasterNoReplay(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(Event{ID: "before"})

	late := b.Subscribe()
	select {
	case ev := <-late.Events():
		t.Fatalf("late subscriber received %s", ev.ID)
	default:
	}

	b.Publish(Event{ID: "after"})
	ev := <-late.Events()
	assert.Equal(t, "after", ev.ID)
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	_, ok := <-sub.Events()
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Publish(Event{ID: "x"}))
}

func TestBroadcasterFullBufferDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe()

	for i := 0; i < subscriptionBuffer+5; i++ {
		b.Publish(Event{ID: "e"})
	}
	assert.Len(t, slow.Events(), subscriptionBuffer)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	after := b.Subscribe()
	_, ok = <-after.Events()
	assert.False(t, ok)
	require.Equal(t, 0, b.Publish(Event{ID: "dropped"}))
}

func TestEventDestination(t *testing.T) {
	assert.Equal(t, "https://apps.example/app", Event{ProductPageURL: "https://apps.example/app", StorefrontURL: "x"}.Destination())
	assert.Equal(t, "market://store", Event{StorefrontURL: "market://store"}.Destination())
	assert.Equal(t, DefaultStorefrontURL, Event{}.Destination())
}

func TestEventString(t *testing.T) {
	e := Event{
		InstalledVersion:       MustParseVersion("1.0"),
		MinimumRequiredVersion: MustParseVersion("2.1.0"),
		ProductPageURL:         "https://apps.example/app",
	}
	assert.Equal(t, "force update required: installed 1.0, minimum 2.1.0, update at https://apps.example/app", e.String())
	assert.Contains(t, Event{}.String(), "installed unknown, minimum unknown")
}
