package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Handlers subscribe by Event.Type() string, optionally scoped to a topic;
// the default topic is "" (empty string). Delivery is synchronous in the
// publisher's goroutine, and handler errors are joined and returned from
// Publish. Handlers should be quick or offload heavy work to avoid
// blocking publishers.
type EventBus interface {
	// Publish delivers the event to all active subscribers of its type in
	// the default topic.
	Publish(event Event) error
	// PublishToTopic delivers the event within a specific topic.
	PublishToTopic(topic string, event Event) error
	// Subscribe registers a handler for an event type in the default topic.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeTopic registers a handler for an event type within a topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Safe to call with nil.
	Unsubscribe(Subscription) error
}

// Event is an immutable message transported by the bus. Implementations
// treat Event values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is the callback invoked per delivered event. A returned
// error is aggregated into the publisher's result.
type EventHandler func(event Event) error

// Subscription is a registered handler bound to an event type. Cancel (or
// EventBus.Unsubscribe) stops delivery; multiple calls are safe.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}
