package forceupdate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const subscriptionBuffer = 10

// Event announces that the installed version is below the required minimum.
type Event struct {
	ID                     string    `json:"id" yaml:"id"`
	ProductPageURL         string    `json:"productPageUrl,omitempty" yaml:"product_page_url,omitempty"`
	StorefrontURL          string    `json:"storefrontUrl" yaml:"storefront_url"`
	InstalledVersion       *Version  `json:"installedVersion" yaml:"installed_version"`
	MinimumRequiredVersion *Version  `json:"minimumRequiredVersion" yaml:"minimum_required_version"`
	CheckedAt              time.Time `json:"checkedAt" yaml:"checked_at"`
}

// Destination is where the user should be sent to upgrade: the product page
// when the marketplace reported one, the storefront otherwise.
func (e Event) Destination() string {
	if e.ProductPageURL != "" {
		return e.ProductPageURL
	}
	if e.StorefrontURL != "" {
		return e.StorefrontURL
	}
	return DefaultStorefrontURL
}

func (e Event) String() string {
	return fmt.Sprintf("force update required: installed %s, minimum %s, update at %s",
		displayVersion(e.InstalledVersion), displayVersion(e.MinimumRequiredVersion), e.Destination())
}

// Subscription receives events published after it was created.
type Subscription struct {
	id     string
	events chan Event
}

// ID identifies the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the receive side of the subscription. The channel is closed
// on Unsubscribe or when the broadcaster is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Broadcaster fans events out to every current subscriber. Nothing is
// retained for subscribers that join later.
type Broadcaster struct {
	mu      sync.Mutex
	streams map[string]chan Event
	closed  bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{streams: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber. Only events published after this call
// are delivered, and the channel buffers 10 of them: a subscriber that falls
// further behind misses events rather than blocking Publish. Subscribing to a
// closed broadcaster returns a subscription whose channel is already closed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		id:     uuid.New().String(),
		events: make(chan Event, subscriptionBuffer),
	}
	if b.closed {
		close(sub.events)
		return sub
	}
	b.streams[sub.id] = sub.events
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if stream, exists := b.streams[sub.id]; exists {
		close(stream)
		delete(b.streams, sub.id)
	}
}

// Publish delivers event to all subscribers without blocking. A subscriber
// whose buffer is full misses the event.
func (b *Broadcaster) Publish(event Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for id, stream := range b.streams {
		select {
		case stream <- event:
			delivered++
		default:
			log.Debugf("subscription %s buffer full, skipping event %s", id, event.ID)
		}
	}
	return delivered
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

// Close closes every subscription. Later publishes are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, stream := range b.streams {
		close(stream)
		delete(b.streams, id)
	}
}
