package ports

import "time"

// Ticker periodically runs a task until stopped.
type Ticker interface {
	// Every schedules task to run once per interval and returns a handle to cancel it.
	Every(interval time.Duration, task func()) (cancel func(), err error)
	Start()
	Stop()
}
