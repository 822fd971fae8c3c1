// Package events provides lifecycle notifications for the worker pool.
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine begins waiting for messages
	EventWorkerStarted EventType = "worker_started"
	// EventJobStarted is emitted when a worker dequeues a job and begins running it
	EventJobStarted EventType = "job_started"
	// EventJobFinished is emitted when a job returns normally
	EventJobFinished EventType = "job_finished"
	// EventJobPanicked is emitted when a job panics and the worker recovers
	EventJobPanicked EventType = "job_panicked"
	// EventWorkerExited is emitted when a worker leaves its loop
	EventWorkerExited EventType = "worker_exited"
	// EventPoolClosed is emitted once every worker has been joined
	EventPoolClosed EventType = "pool_closed"
)

// Event represents a worker pool lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Duration string `json:"duration,omitempty"`
	Panic    string `json:"panic,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobStartedEvent creates a job started event
func NewJobStartedEvent(workerID int) Event {
	return Event{
		Type:      EventJobStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobFinishedEvent creates a job finished event
func NewJobFinishedEvent(workerID int, took time.Duration) Event {
	return Event{
		Type:      EventJobFinished,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Duration: took.String(),
		},
	}
}

// NewJobPanickedEvent creates a job panicked event
func NewJobPanickedEvent(workerID int, took time.Duration, recovered any) Event {
	return Event{
		Type:      EventJobPanicked,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Duration: took.String(),
			Panic:    fmt.Sprint(recovered),
		},
	}
}

// NewWorkerExitedEvent creates a worker exited event.
// reason is "terminate" or "disconnected".
func NewWorkerExitedEvent(workerID int, reason string) Event {
	return Event{
		Type:      EventWorkerExited,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Reason: reason,
		},
	}
}

// NewPoolClosedEvent creates a pool closed event. WorkerID is -1.
func NewPoolClosedEvent() Event {
	return Event{
		Type:      EventPoolClosed,
		Timestamp: time.Now(),
		WorkerID:  -1,
	}
}
