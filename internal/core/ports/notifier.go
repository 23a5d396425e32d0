package ports

import "context"

const (
	ViewUpdated Topic = "View Updated"
	UserError   Topic = "User Error"
)

type Topic string

// Notifier publishes editor events to whoever renders them.
type Notifier interface {
	Publish(ctx context.Context, topic Topic, message any) error
	Close() error
}
