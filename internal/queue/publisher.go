package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/apply-service/internal/model"
)

// Redis channels queue events are published on.
const (
	ChannelJobProcessed = "EVENT_JOB_PROCESSED"
	ChannelProgress     = "EVENT_QUEUE_PROGRESS"
	ChannelComplete     = "EVENT_QUEUE_COMPLETE"
)

// Event is the JSON document published for every queue notification.
type Event struct {
	Type     string            `json:"type"`
	Session  string            `json:"session,omitempty"`
	Job      *model.Job        `json:"job,omitempty"`
	Progress *Progress         `json:"progress,omitempty"`
	Stats    *model.QueueStats `json:"stats,omitempty"`
	At       time.Time         `json:"at"`
}

// publisher is the part of *redis.Client the event fan-out uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// EventPublisher forwards queue notifications to Redis pub/sub so other
// processes (the service, a dashboard) can follow a run.
type EventPublisher struct {
	rdb     publisher
	session string
	timeout time.Duration
	now     func() time.Time
}

// NewEventPublisher returns a publisher tagging events with session.
func NewEventPublisher(rdb publisher, session string) *EventPublisher {
	return &EventPublisher{rdb: rdb, session: session, timeout: 2 * time.Second, now: time.Now}
}

// Attach subscribes to q and returns a func that detaches all listeners.
func (p *EventPublisher) Attach(q *JobQueue) (detach func()) {
	offs := []func(){
		q.OnJobProcessed(func(job *model.Job) {
			p.publish(ChannelJobProcessed, Event{Type: ChannelJobProcessed, Job: job})
		}),
		q.OnProgress(func(pr Progress) {
			p.publish(ChannelProgress, Event{Type: ChannelProgress, Progress: &pr})
		}),
		q.OnComplete(func(st model.QueueStats) {
			p.publish(ChannelComplete, Event{Type: ChannelComplete, Stats: &st})
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// publish is non-fatal: a lost event is logged, never returned.
func (p *EventPublisher) publish(channel string, ev Event) {
	ev.Session = p.session
	ev.At = p.now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("marshal queue event failed", "channel", channel, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		slog.Warn("publish queue event failed", "channel", channel, "err", err)
	}
}
