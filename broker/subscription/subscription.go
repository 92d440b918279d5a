// Package subscription provides the receive side of a broker channel.
package subscription

import "sync"

// DefaultQueueSize bounds how many undelivered events a subscriber may lag
// behind before publishers block.
const DefaultQueueSize = 64

// Subscription is a single subscriber's event queue.
type Subscription struct {
	queue chan any
	done  chan struct{}
	once  sync.Once
}

// New creates a Subscription with the default queue size.
func New() *Subscription {
	return &Subscription{
		queue: make(chan any, DefaultQueueSize),
		done:  make(chan struct{}),
	}
}

// Send enqueues a message. It blocks when the queue is full; delivery order
// matches publish order. Sends after Close are dropped so a publisher can
// never wedge on a subscriber being torn down.
func (s *Subscription) Send(message any) {
	select {
	case s.queue <- message:
	case <-s.done:
	}
}

// Receive returns the channel events are delivered on.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close releases pending and future sends. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// CloseQueue closes the queue. Only the owning channel may call this, once no
// sender can reach the subscription anymore.
func (s *Subscription) CloseQueue() {
	close(s.queue)
}
