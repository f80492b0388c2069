// Package queue owns discovery, filtering and the sequential processing loop
// that applies to queued jobs through the active board adapter.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobmate/apply-service/internal/adapter"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// ─── Errors ──────────────────────────────────────────────────────────────────

var (
	ErrNotOnSearchResultsPage = errors.New("current page is not a search results page")
	ErrAlreadyProcessing      = errors.New("queue is already processing")
	ErrEmptyQueue             = errors.New("queue is empty")
	ErrNotActive              = errors.New("no processing run to resume")
	ErrAdapterNotInitialized  = errors.New("adapter not initialized")
	ErrPlatformDisabled       = errors.New("platform disabled in settings")
	ErrDiscoveryInProgress    = errors.New("discovery in progress")
)

// errManualIntervention is recorded on jobs whose flow could not be finished
// automatically.
var errManualIntervention = errors.New("manual intervention required")

// ─── Collaborators ───────────────────────────────────────────────────────────

// Collaborator is the remote rate-limit and history service.
type Collaborator interface {
	CheckRateLimit(ctx context.Context) (model.RateLimitStatus, error)
	RecordApplication(ctx context.Context, outcome model.Outcome) error
}

// Throttle is a local limiter consulted after the remote check allows.
type Throttle interface {
	Allow() bool
}

// AdapterSource builds the adapter for the page being automated.
type AdapterSource interface {
	Create(target string) (adapter.Adapter, error)
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	State         model.ProcessingState `json:"state"`
	QueueSize     int                   `json:"queueSize"`
	ProcessedSize int                   `json:"processedSize"`
	CurrentJob    *model.Job            `json:"currentJob,omitempty"`
	Stats         model.QueueStats      `json:"stats"`
	Platform      model.Platform        `json:"platform,omitempty"`
}

// exitReason records why the last processing loop returned.
type exitReason int

const (
	exitNone exitReason = iota
	exitExhausted
	exitPaused
	exitStopped
	exitDailyLimit
	exitCanceled
)

// Option configures a JobQueue.
type Option func(*JobQueue)

// WithLogger sets the queue's logger.
func WithLogger(l *slog.Logger) Option { return func(q *JobQueue) { q.log = l } }

// WithThrottle sets a local limiter checked before every application.
func WithThrottle(t Throttle) Option { return func(q *JobQueue) { q.throttle = t } }

// WithSleep replaces the delay function used between jobs and after
// pagination.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(q *JobQueue) { q.sleep = fn }
}

// ─── JobQueue ────────────────────────────────────────────────────────────────

// JobQueue discovers jobs on the current page and applies to them one at a
// time. Queue state is guarded by mu; every adapter call that touches the
// page holds pageMu.
type JobQueue struct {
	mu     sync.Mutex
	pageMu sync.Mutex

	adapter  adapter.Adapter
	remote   Collaborator
	settings model.Settings
	policy   Policy
	throttle Throttle
	baseLog  *slog.Logger
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	state      model.ProcessingState
	queue      []*model.Job
	processed  []*model.Job
	current    *model.Job
	stats      model.QueueStats
	paused     bool
	stopReq    bool
	loopActive bool
	lastExit   exitReason

	progress    listeners[Progress]
	processedEv listeners[*model.Job]
	complete    listeners[model.QueueStats]
}

// New returns an idle queue. remote may be nil, in which case no remote
// rate-limit check is made and outcomes are not recorded.
func New(remote Collaborator, settings model.Settings, opts ...Option) *JobQueue {
	settings = settings.Normalize()
	q := &JobQueue{
		remote:   remote,
		settings: settings,
		policy:   PolicyFromSettings(settings),
		log:      slog.Default(),
		sleep:    page.Sleep,
		state:    model.StateIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.baseLog = q.log
	return q
}

// Init resolves the adapter for target through src.
func (q *JobQueue) Init(src AdapterSource, target string) error {
	a, err := src.Create(target)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}
	return q.SetAdapter(a)
}

// SetAdapter installs a, replacing any previous adapter. Jobs discovered by
// the previous adapter are dropped with its page.
func (q *JobQueue) SetAdapter(a adapter.Adapter) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.settings.PlatformEnabled(a.Platform()) {
		return fmt.Errorf("%w: %s", ErrPlatformDisabled, a.Platform())
	}
	if q.loopActive {
		return ErrAlreadyProcessing
	}
	q.adapter = a
	q.queue = nil
	q.log = q.baseLog.With("platform", string(a.Platform()))
	return nil
}

// UpdateSettings swaps the settings used by the next discovery pass and the
// next loop iteration.
func (q *JobQueue) UpdateSettings(s model.Settings) {
	s = s.Normalize()
	q.mu.Lock()
	q.settings = s
	q.policy = PolicyFromSettings(s)
	q.mu.Unlock()
}

// Settings returns the settings in effect.
func (q *JobQueue) Settings() model.Settings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.settings
}

// Status returns a snapshot of the queue.
func (q *JobQueue) Status() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *JobQueue) snapshotLocked() Snapshot {
	s := Snapshot{
		State:         q.state,
		QueueSize:     len(q.queue),
		ProcessedSize: len(q.processed),
		CurrentJob:    q.current.Snapshot(),
		Stats:         q.stats,
	}
	if q.adapter != nil {
		s.Platform = q.adapter.Platform()
	}
	return s
}

// Processed returns snapshots of every processed job, oldest first.
func (q *JobQueue) Processed() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, len(q.processed))
	for i, j := range q.processed {
		out[i] = j.Snapshot()
	}
	return out
}

// Pending returns snapshots of the queued jobs in processing order.
func (q *JobQueue) Pending() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.Job, len(q.queue))
	for i, j := range q.queue {
		out[i] = j.Snapshot()
	}
	return out
}

// setStateLocked moves to next when the state machine allows it.
func (q *JobQueue) setStateLocked(next model.ProcessingState) {
	if q.state == next {
		return
	}
	if !model.CanTransition(q.state, next) {
		q.log.Warn("ignoring invalid state transition", "from", q.state, "to", next)
		return
	}
	q.state = next
}

// ─── Discovery ───────────────────────────────────────────────────────────────

// DiscoverJobs scans the current results page and replaces the queue with
// the jobs that pass the filter policy. It returns the number queued.
func (q *JobQueue) DiscoverJobs(ctx context.Context) (int, error) {
	q.mu.Lock()
	if q.adapter == nil {
		q.mu.Unlock()
		return 0, ErrAdapterNotInitialized
	}
	standalone := q.state == model.StateIdle
	if standalone {
		q.setStateLocked(model.StateDiscovering)
	}
	q.mu.Unlock()

	if standalone {
		defer func() {
			q.mu.Lock()
			q.setStateLocked(model.StateIdle)
			q.mu.Unlock()
		}()
	}

	q.pageMu.Lock()
	defer q.pageMu.Unlock()
	return q.discoverLocked(ctx)
}

// discoverLocked runs one discovery pass. The caller holds pageMu.
func (q *JobQueue) discoverLocked(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a := q.currentAdapter()
	if !a.IsSearchResultsPage() {
		return 0, ErrNotOnSearchResultsPage
	}
	jobs := a.ExtractJobsFromSearchResults()

	q.mu.Lock()
	kept, dropped := q.policy.apply(a, jobs, q.processed)
	skipped := 0
	for _, n := range dropped {
		skipped += n
	}
	q.stats.Discovered = len(jobs)
	q.stats.Queued = len(kept)
	q.stats.Skipped += skipped
	q.queue = kept
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.log.Info("discovered jobs",
		"discovered", len(jobs), "queued", len(kept),
		"alreadyApplied", dropped[dropApplied], "noEasyApply", dropped[dropNoEasyApply],
		"excluded", dropped[dropExcluded], "duplicates", dropped[dropDuplicate])
	q.progress.emit(Progress{Kind: ProgressDiscovery, Snapshot: snap})
	return len(kept), nil
}

func (q *JobQueue) currentAdapter() adapter.Adapter {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.adapter
}

// ─── Processing ──────────────────────────────────────────────────────────────

// StartProcessing runs the processing loop until the queue is exhausted,
// the daily limit is reached, or the run is paused or stopped. It blocks for
// the duration of the run.
func (q *JobQueue) StartProcessing(ctx context.Context) error {
	q.mu.Lock()
	switch {
	case q.adapter == nil:
		q.mu.Unlock()
		return ErrAdapterNotInitialized
	case q.loopActive || q.state == model.StateProcessing:
		q.mu.Unlock()
		return ErrAlreadyProcessing
	case q.state == model.StateDiscovering:
		q.mu.Unlock()
		return ErrDiscoveryInProgress
	case len(q.queue) == 0:
		q.mu.Unlock()
		return ErrEmptyQueue
	}
	q.beginRunLocked()
	size := len(q.queue)
	q.mu.Unlock()

	q.log.Info("processing started", "queued", size)
	return q.run(ctx)
}

// beginRunLocked marks a loop as active. The caller holds mu.
func (q *JobQueue) beginRunLocked() {
	q.paused = false
	q.stopReq = false
	q.loopActive = true
	q.lastExit = exitNone
	q.setStateLocked(model.StateProcessing)
}

// run is the pop → process → delay loop. Every exit goes through next so the
// decision to stop and the release of loopActive happen under one lock.
func (q *JobQueue) run(ctx context.Context) error {
	for {
		job, reason := q.next(ctx)
		if job == nil {
			return q.finish(ctx, reason)
		}

		q.ProcessJob(ctx, job)

		if q.shouldDelay() {
			delay := q.Settings().DelayBetweenApplications
			q.log.Debug("waiting before next application", "delay", delay)
			// a canceled sleep is observed by next
			_ = q.sleep(ctx, delay)
		}
	}
}

// next pops the front job or, when the loop must end, releases the loop and
// settles the state.
func (q *JobQueue) next(ctx context.Context) (*model.Job, exitReason) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current = nil
	reason := exitNone
	switch {
	case q.stopReq:
		reason = exitStopped
	case q.paused:
		reason = exitPaused
	case ctx.Err() != nil:
		reason = exitCanceled
	case q.stats.Successful >= q.settings.DailyLimit:
		reason = exitDailyLimit
	case len(q.queue) == 0:
		reason = exitExhausted
	}
	if reason == exitNone {
		job := q.queue[0]
		q.queue = q.queue[1:]
		q.current = job
		return job, exitNone
	}

	q.loopActive = false
	q.lastExit = reason
	if reason == exitPaused {
		q.setStateLocked(model.StatePaused)
	} else {
		q.setStateLocked(model.StateIdle)
	}
	return nil, reason
}

func (q *JobQueue) finish(ctx context.Context, reason exitReason) error {
	stats := q.Status().Stats
	switch reason {
	case exitExhausted:
		q.log.Info("processing complete",
			"processed", stats.Processed, "successful", stats.Successful, "failed", stats.Failed)
		q.complete.emit(stats)
	case exitDailyLimit:
		q.log.Info("daily limit reached, stopping", "successful", stats.Successful, "dailyLimit", q.Settings().DailyLimit)
	case exitPaused:
		q.log.Info("processing paused", "remaining", q.Status().QueueSize)
	case exitStopped:
		q.log.Info("processing stopped", "remaining", q.Status().QueueSize)
	case exitCanceled:
		return ctx.Err()
	}
	return nil
}

// shouldDelay reports whether another job will be popped after this one.
func (q *JobQueue) shouldDelay() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue) > 0 && !q.paused && !q.stopReq && q.stats.Successful < q.settings.DailyLimit
}

// ProcessJob applies to one job. It returns false when a rate limit paused
// the queue before the job was attempted; the job is then left pending and
// is not requeued. Application failures are recorded on the job, never
// returned.
func (q *JobQueue) ProcessJob(ctx context.Context, job *model.Job) bool {
	if model.IsTerminal(job.Status) {
		q.log.Warn("job already processed, skipping", "job", job.Title, "status", job.Status)
		return true
	}
	if !q.allowed(ctx) {
		return false
	}

	ok, err := q.apply(ctx, job)
	status := model.StatusSuccess
	if err == nil && !ok {
		err = errManualIntervention
	}
	if err != nil {
		status = model.StatusFailed
	}

	q.mu.Lock()
	if !model.IsTransitionAllowed(job.Status, status) {
		q.mu.Unlock()
		q.log.Warn("job status already final", "job", job.Title, "status", job.Status)
		return true
	}
	job.Status = status
	if err != nil {
		job.Error = err.Error()
	}
	q.stats.Processed++
	if status == model.StatusSuccess {
		q.stats.Successful++
	} else {
		q.stats.Failed++
	}
	q.processed = append(q.processed, job)
	snap := q.snapshotLocked()
	q.mu.Unlock()

	log := q.log.With("job", job.Title, "company", job.Company)
	if err != nil {
		log.Warn("application failed", "err", err)
	} else {
		log.Info("application succeeded")
	}

	out := job.Snapshot()
	if q.remote != nil {
		if rerr := q.remote.RecordApplication(ctx, model.Outcome{Job: out, Status: out.Status, Error: out.Error}); rerr != nil {
			log.Warn("record application outcome failed", "err", rerr)
		}
	}

	q.processedEv.emit(out)
	q.progress.emit(Progress{Kind: ProgressProcessing, Snapshot: snap})
	return true
}

// allowed consults the remote rate limit, then the local throttle, so a
// remote denial never spends a local token. Any negative answer, including
// a transport error, pauses the queue.
func (q *JobQueue) allowed(ctx context.Context) bool {
	if q.remote != nil && !q.remoteAllows(ctx) {
		return false
	}
	if q.throttle != nil && !q.throttle.Allow() {
		q.pauseFor("local throttle exhausted")
		return false
	}
	return true
}

func (q *JobQueue) remoteAllows(ctx context.Context) bool {
	rl, err := q.remote.CheckRateLimit(ctx)
	if err != nil {
		q.log.Warn("rate limit check failed, treating as not allowed", "err", err)
		q.pauseFor("rate limit check failed")
		return false
	}
	if !rl.Allowed {
		reason := rl.Reason
		if reason == "" {
			reason = "rate limit reached"
		}
		q.log.Info("rate limit reached",
			"daily", rl.DailyApplications, "dailyLimit", rl.DailyLimit,
			"hourly", rl.HourlyApplications, "hourlyLimit", rl.HourlyLimit)
		q.pauseFor(reason)
		return false
	}
	return true
}

func (q *JobQueue) pauseFor(reason string) {
	q.mu.Lock()
	q.paused = true
	q.current = nil
	q.setStateLocked(model.StatePaused)
	snap := q.snapshotLocked()
	q.mu.Unlock()
	q.log.Info("pausing queue", "reason", reason)
	q.progress.emit(Progress{Kind: ProgressProcessing, Snapshot: snap})
}

// apply runs the adapter's flow with the page lock held. Panics are
// converted to errors.
func (q *JobQueue) apply(ctx context.Context, job *model.Job) (ok bool, err error) {
	q.pageMu.Lock()
	defer q.pageMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("apply panicked: %v", r)
		}
	}()
	return q.currentAdapter().ApplyToJob(ctx, job)
}

// ─── Control ─────────────────────────────────────────────────────────────────

// PauseProcessing asks the loop to stop before its next job. The job in
// flight is finished.
func (q *JobQueue) PauseProcessing() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.loopActive && q.state != model.StateProcessing {
		return
	}
	q.paused = true
	q.setStateLocked(model.StatePaused)
}

// ResumeProcessing clears the pause. If the loop already exited it runs
// again from the current queue front and blocks like StartProcessing.
func (q *JobQueue) ResumeProcessing(ctx context.Context) error {
	q.mu.Lock()
	if q.adapter == nil {
		q.mu.Unlock()
		return ErrAdapterNotInitialized
	}
	if q.loopActive {
		if q.stopReq {
			q.mu.Unlock()
			return ErrNotActive
		}
		// the loop has not reached its pause check yet
		q.paused = false
		q.setStateLocked(model.StateProcessing)
		q.mu.Unlock()
		return nil
	}
	if q.state != model.StatePaused {
		q.mu.Unlock()
		return ErrNotActive
	}
	q.beginRunLocked()
	size := len(q.queue)
	q.mu.Unlock()

	q.log.Info("processing resumed", "queued", size)
	return q.run(ctx)
}

// StopProcessing ends the run. The queue and the processed list are kept.
func (q *JobQueue) StopProcessing() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopReq = true
	q.paused = false
	q.current = nil
	if q.state == model.StateProcessing || q.state == model.StatePaused {
		q.setStateLocked(model.StateIdle)
	}
}

// IsProcessing reports whether a loop is running.
func (q *JobQueue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loopActive
}
