package model

import "fmt"

// Status is the processing status of a Job.
//
//	PENDING ──► SUCCESS
//	   │
//	   └──────► FAILED
//
// SUCCESS and FAILED are terminal: a job is decided exactly once.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var validTransitions = map[Status][]Status{
	StatusPending: {StatusSuccess, StatusFailed},
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusSuccess, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted. The
// zero Status counts as pending.
func IsTransitionAllowed(from, to Status) bool {
	if from == "" {
		from = StatusPending
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a decided status.
func IsTerminal(s Status) bool { return s == StatusSuccess || s == StatusFailed }

// ProcessingState is the state of a job queue.
//
//	IDLE ──► DISCOVERING ──► IDLE
//	IDLE ──► PROCESSING ⇄ PAUSED
//	PROCESSING / PAUSED ──► IDLE   (completion, daily limit or stop)
type ProcessingState string

const (
	StateIdle        ProcessingState = "idle"
	StateDiscovering ProcessingState = "discovering"
	StateProcessing  ProcessingState = "processing"
	StatePaused      ProcessingState = "paused"
)

var validStateTransitions = map[ProcessingState][]ProcessingState{
	StateIdle:        {StateDiscovering, StateProcessing},
	StateDiscovering: {StateIdle},
	StateProcessing:  {StatePaused, StateIdle},
	StatePaused:      {StateProcessing, StateIdle},
}

// CanTransition returns true when the queue may move from → to.
func CanTransition(from, to ProcessingState) bool {
	for _, s := range validStateTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
