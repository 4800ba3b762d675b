package executor

import "time"

// EventType identifies a lifecycle notification from the executor.
type EventType string

const (
	EventStart        EventType = "start"
	EventTaskStart    EventType = "taskStart"
	EventTaskComplete EventType = "taskComplete"
	EventTaskError    EventType = "taskError"
	EventThrottle     EventType = "throttle"
	EventComplete     EventType = "complete"
)

// Event is a push-based lifecycle notification. Only the fields relevant
// to the event type are populated.
type Event struct {
	Type          EventType
	TaskID        string
	TotalTasks    int
	Completed     int
	Failed        int
	Progress      float64
	ExecutionTime time.Duration
	Err           error
	Reason        string
	WaitTime      time.Duration
	Current       int
	Limit         int
	Duration      time.Duration
}

// Observer receives lifecycle events. Implementations must be safe for
// concurrent use; events for distinct tasks may arrive from different
// goroutines.
type Observer interface {
	HandleEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleEvent(ev Event) { f(ev) }
