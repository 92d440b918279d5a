// Package broker provides an in-process publish/subscribe bus. Every event
// that feeds the signaling coordinator travels through it, which keeps all
// protocol state mutation behind a single serialized dispatcher.
package broker

import (
	"fmt"
	"sync"

	"voicemesh/broker/channel"
	"voicemesh/broker/subscription"
)

// Topic groups related events.
type Topic int

// Topics.
const (
	// Member carries channel membership events delivered by the relay.
	Member Topic = iota

	// Signal carries offer/answer/candidate messages delivered by the relay.
	Signal

	// Peer carries per-connection lifecycle events from the media engine.
	Peer

	// Transport carries relay transport connectivity events.
	Transport
)

// Detail narrows a topic to a specific event kind.
type Detail string

// Details.
const (
	ROSTER   Detail = "ROSTER"
	JOINED   Detail = "JOINED"
	LEFT     Detail = "LEFT"
	STATE    Detail = "STATE"
	SPEAKING Detail = "SPEAKING"

	OFFER  Detail = "OFFER"
	ANSWER Detail = "ANSWER"
	ICE    Detail = "ICE"

	CONNECTED    Detail = "CONNECTED"
	DISCONNECTED Detail = "DISCONNECTED"
	FAILED       Detail = "FAILED"
)

// subject keys a channel by topic and detail.
type subject struct {
	topic  Topic
	detail Detail
}

// Broker routes published messages to subscribers keyed by (topic, detail).
type Broker struct {
	mu       sync.RWMutex
	channels map[subject]*channel.Channel
}

// New creates a new Broker instance.
func New() *Broker {
	return &Broker{
		channels: map[subject]*channel.Channel{},
	}
}

// Publish delivers a message to all subscribers of (topic, detail). Publishing
// with no subscribers is not an error; the message is dropped.
func (b *Broker) Publish(topic Topic, detail Detail, message any) error {
	b.mu.RLock()
	ch, ok := b.channels[subject{topic, detail}]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	ch.SendAll(message)
	return nil
}

// Subscribe registers a new subscriber for (topic, detail).
func (b *Broker) Subscribe(topic Topic, detail Detail) *subscription.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := subject{topic, detail}
	ch, ok := b.channels[key]
	if !ok {
		ch = channel.New()
		b.channels[key] = ch
	}
	sub := subscription.New()
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (b *Broker) Unsubscribe(topic Topic, detail Detail, sub *subscription.Subscription) error {
	b.mu.RLock()
	ch, ok := b.channels[subject{topic, detail}]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no channel for topic %d detail %s", topic, detail)
	}
	// Release any publisher blocked on this subscriber's full queue first;
	// RemoveSubscription needs the channel write lock such a publisher holds
	// the read side of.
	sub.Close()
	if !ch.RemoveSubscription(sub) {
		return fmt.Errorf("subscription not found for topic %d detail %s", topic, detail)
	}
	return nil
}
