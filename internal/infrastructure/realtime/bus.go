// Package realtime carries change notifications between writers and
// subscribers. Notifications coalesce: a subscriber that has not yet drained
// a pending notification does not receive a second one, because every
// notification means "reload the whole collection".
package realtime

import "context"

// Bus publishes notifications on topics and hands out subscriptions.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription delivers notifications for a single topic until closed.
type Subscription interface {
	C() <-chan []byte
	Close() error
}

// TodosTopic is the notification topic for users/{uid}/todos.
func TodosTopic(userID string) string {
	return "todos:" + userID
}

// AuthTopic is the notification topic for auth-state changes of a session.
func AuthTopic(sessionID string) string {
	return "auth:" + sessionID
}

// offer hands payload to ch without blocking, keeping at most one pending value.
func offer(ch chan []byte, payload []byte) {
	select {
	case ch <- payload:
	default:
	}
}
