package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	nextPageSettle = 3 * time.Second
)

// AutoOptions bound an auto-discovery session.
type AutoOptions struct {
	MaxPages     int           // pages loaded beyond the first
	MaxJobs      int           // jobs processed during the session
	PollInterval time.Duration // how often the queue is checked for a top-up
	LowWatermark int           // top up when the queue holds this many jobs or fewer
}

// DefaultAutoOptions returns the auto-discovery ceilings used when a field
// is left zero.
func DefaultAutoOptions() AutoOptions {
	return AutoOptions{
		MaxPages:     10,
		MaxJobs:      100,
		PollInterval: 10 * time.Second,
		LowWatermark: 5,
	}
}

func (o AutoOptions) withDefaults() AutoOptions {
	def := DefaultAutoOptions()
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.MaxJobs <= 0 {
		o.MaxJobs = def.MaxJobs
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.LowWatermark <= 0 {
		o.LowWatermark = def.LowWatermark
	}
	return o
}

// LoadMoreJobs moves to the next results page, or scrolls when there is
// none, and rediscovers. The queue is replaced by the new pass. When neither
// loads anything the queue is left alone and 0 is returned.
func (q *JobQueue) LoadMoreJobs(ctx context.Context) (int, error) {
	a := q.currentAdapter()
	if a == nil {
		return 0, ErrAdapterNotInitialized
	}

	q.pageMu.Lock()
	defer q.pageMu.Unlock()

	moved, err := a.NavigateToNextPage(ctx)
	if err != nil {
		q.log.Warn("next page failed, falling back to scroll", "err", err)
		moved = false
	}
	if moved {
		if err := q.sleep(ctx, nextPageSettle); err != nil {
			return 0, err
		}
		return q.discoverLocked(ctx)
	}

	grew, err := a.ScrollForMoreJobs(ctx)
	if err != nil {
		return 0, err
	}
	if !grew {
		// unchanged page: nothing new to queue
		q.log.Info("no more results to load")
		return 0, nil
	}
	return q.discoverLocked(ctx)
}

// autoRun tracks the ceilings of one auto-discovery session. Only loads
// that queued something count as pages; jobs are counted from the queue's
// processed counter, relative to where the session started.
type autoRun struct {
	mu       sync.Mutex
	opts     AutoOptions
	pages    int
	baseline int
}

func (r *autoRun) exhausted(q *JobQueue) bool {
	processed := q.Status().Stats.Processed
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pages >= r.opts.MaxPages || processed-r.baseline >= r.opts.MaxJobs
}

func (r *autoRun) loaded(jobs int) {
	if jobs == 0 {
		return
	}
	r.mu.Lock()
	r.pages++
	r.mu.Unlock()
}

// StartAutoDiscovery discovers, processes, and keeps the queue topped up
// from further pages until the ceilings in opts are reached or the run is
// paused, stopped or hits the daily limit. It blocks like StartProcessing.
func (q *JobQueue) StartAutoDiscovery(ctx context.Context, opts AutoOptions) error {
	run := &autoRun{opts: opts.withDefaults(), baseline: q.Status().Stats.Processed}

	if _, err := q.DiscoverJobs(ctx); err != nil {
		return err
	}
	q.log.Info("auto-discovery started",
		"maxPages", run.opts.MaxPages, "maxJobs", run.opts.MaxJobs, "pollInterval", run.opts.PollInterval)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.topUp(ctx, run)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		if q.Status().QueueSize == 0 {
			if run.exhausted(q) {
				return nil
			}
			n, err := q.LoadMoreJobs(ctx)
			if err != nil {
				return err
			}
			run.loaded(n)
			if n == 0 {
				q.log.Info("auto-discovery found nothing new, stopping")
				return nil
			}
		}

		err := q.StartProcessing(ctx)
		switch {
		case errors.Is(err, ErrEmptyQueue):
			// a top-up replaced the queue with an empty pass
			continue
		case err != nil:
			return err
		}

		q.mu.Lock()
		reason := q.lastExit
		q.mu.Unlock()
		if reason != exitExhausted {
			return nil
		}
	}
}

// topUp polls while processing is active and loads more jobs whenever the
// queue falls to the low watermark.
func (q *JobQueue) topUp(ctx context.Context, run *autoRun) {
	ticker := time.NewTicker(run.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !q.IsProcessing() || run.exhausted(q) {
			continue
		}
		if q.Status().QueueSize > run.opts.LowWatermark {
			continue
		}
		n, err := q.LoadMoreJobs(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.log.Warn("auto-discovery top-up failed", "err", err)
			}
			continue
		}
		run.loaded(n)
		q.log.Info("auto-discovery topped up queue", "queued", n)
	}
}
