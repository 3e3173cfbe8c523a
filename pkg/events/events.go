package events

import (
	"sync"
	"time"
)

// NotificationType represents a ping lifecycle transition
type NotificationType string

const (
	NotificationPingSubmitted   NotificationType = "ping.submitted"
	NotificationPingUploaded    NotificationType = "ping.uploaded"
	NotificationPingRetrying    NotificationType = "ping.retrying"
	NotificationPingDropped     NotificationType = "ping.dropped"
	NotificationUploadThrottled NotificationType = "upload.throttled"
)

// Notification describes something that happened to a ping
type Notification struct {
	Type       NotificationType
	DocumentID string
	Ping       string
	Timestamp  time.Time
	Message    string
	Metadata   map[string]string
}

// Subscriber is a channel that receives notifications
type Subscriber chan *Notification

// Broker fans ping lifecycle notifications out to subscribers. A nil
// *Broker is valid and drops everything, so components can publish
// unconditionally.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	notifyCh    chan *Notification
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		notifyCh:    make(chan *Notification, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker and closes every subscription
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)

		b.mu.Lock()
		defer b.mu.Unlock()
		for sub := range b.subscribers {
			delete(b.subscribers, sub)
			close(sub)
		}
	})
}

// Subscribe creates a new subscription
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues a notification for delivery. It never blocks: when the
// buffer is full or the broker is stopped the notification is dropped.
func (b *Broker) Publish(n *Notification) {
	if b == nil {
		return
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
	case b.notifyCh <- n:
	default:
	}
}

func (b *Broker) run() {
	for {
		select {
		case n := <-b.notifyCh:
			b.broadcast(n)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(n *Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- n:
		default:
			// Slow subscriber, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
