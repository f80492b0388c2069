package queue

import (
	"sync"

	"jobmate/apply-service/internal/model"
)

// ProgressKind tells discovery progress from processing progress.
type ProgressKind string

const (
	ProgressDiscovery  ProgressKind = "discovery"
	ProgressProcessing ProgressKind = "processing"
)

// Progress is delivered to OnProgress listeners.
type Progress struct {
	Kind     ProgressKind `json:"kind"`
	Snapshot Snapshot     `json:"snapshot"`
}

// listeners is an ordered list of callbacks. Callbacks run synchronously on
// the emitting goroutine, outside the queue's lock.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

func (l *listeners[T]) add(fn func(T)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.fns = append(l.fns, listener[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, f := range l.fns {
				if f.id == id {
					l.fns = append(l.fns[:i:i], l.fns[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.fns))
	for i, f := range l.fns {
		fns[i] = f.fn
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// OnProgress subscribes to discovery and processing progress. Subscribers
// only see events emitted after they subscribe.
func (q *JobQueue) OnProgress(fn func(Progress)) (unsubscribe func()) {
	return q.progress.add(fn)
}

// OnJobProcessed subscribes to per-job outcomes. The job is a snapshot
// without its page handle.
func (q *JobQueue) OnJobProcessed(fn func(*model.Job)) (unsubscribe func()) {
	return q.processedEv.add(fn)
}

// OnComplete subscribes to natural queue exhaustion. Pause, stop and the
// daily limit do not complete a run.
func (q *JobQueue) OnComplete(fn func(model.QueueStats)) (unsubscribe func()) {
	return q.complete.add(fn)
}
