package queue_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// card is a job card stub carrying the board markers the filter reads.
type card struct {
	applied bool
	easy    bool
}

func (c *card) QueryAll(string) []page.Element { return nil }
func (c *card) Text() string                   { return "" }
func (c *card) Attr(string) (string, bool)     { return "", false }
func (c *card) Value() string                  { return "" }
func (c *card) Visible() bool                  { return true }
func (c *card) Disabled() bool                 { return false }
func (c *card) Checked() bool                  { return false }
func (c *card) Matches(string) bool            { return false }

type listing struct {
	id, title, company string
	applied, easy      bool
}

func easy(id string) listing     { return listing{id: id, title: "Engineer " + id, company: "Co " + id, easy: true} }
func applied(id string) listing  { return listing{id: id, title: "Engineer " + id, company: "Co " + id, easy: true, applied: true} }
func external(id string) listing { return listing{id: id, title: "Engineer " + id, company: "Co " + id} }
func easyRange(n int) []listing {
	out := make([]listing, n)
	for i := range out {
		out[i] = easy(fmt.Sprintf("j%d", i+1))
	}
	return out
}

// fakeAdapter serves pages of listings and scripted apply outcomes.
type fakeAdapter struct {
	mu       sync.Mutex
	notOnSRP bool
	pages    [][]listing
	page     int
	grow     []listing // appended by ScrollForMoreJobs once

	onApply func(job *model.Job) (bool, error)
	applied []string
}

func (a *fakeAdapter) Platform() model.Platform   { return model.PlatformLinkedIn }
func (a *fakeAdapter) IsSearchResultsPage() bool  { return !a.notOnSRP }
func (a *fakeAdapter) IsJobDetailPage() bool      { return false }
func (a *fakeAdapter) ExtractJobData() *model.Job { return nil }

func (a *fakeAdapter) ExtractJobsFromSearchResults() []*model.Job {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page >= len(a.pages) {
		return nil
	}
	var jobs []*model.Job
	for _, l := range a.pages[a.page] {
		jobs = append(jobs, &model.Job{
			Title:    l.title,
			Company:  l.company,
			JobID:    l.id,
			Platform: model.PlatformLinkedIn,
			Status:   model.StatusPending,
			Card:     &card{applied: l.applied, easy: l.easy},
		})
	}
	return jobs
}

func (a *fakeAdapter) HasEasyApply(el page.Element) bool {
	c, ok := el.(*card)
	return ok && c.easy
}

func (a *fakeAdapter) HasAlreadyApplied(el page.Element) bool {
	c, ok := el.(*card)
	return ok && c.applied
}

func (a *fakeAdapter) ApplyToJob(ctx context.Context, job *model.Job) (bool, error) {
	a.mu.Lock()
	a.applied = append(a.applied, job.JobID)
	hook := a.onApply
	a.mu.Unlock()
	if hook != nil {
		return hook(job)
	}
	return true, nil
}

func (a *fakeAdapter) NavigateToNextPage(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page+1 >= len(a.pages) {
		return false, nil
	}
	a.page++
	return true, nil
}

func (a *fakeAdapter) ScrollForMoreJobs(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.grow) == 0 || a.page >= len(a.pages) {
		return false, nil
	}
	a.pages[a.page] = append(a.pages[a.page], a.grow...)
	a.grow = nil
	return true, nil
}

func (a *fakeAdapter) appliedIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

// fakeRemote is the background collaborator.
type fakeRemote struct {
	mu        sync.Mutex
	denyAfter int // deny checks after this many allowed ones; 0 never denies
	checkErr  error
	recordErr error
	checks    int
	outcomes  []model.Outcome
}

func (r *fakeRemote) CheckRateLimit(context.Context) (model.RateLimitStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks++
	if r.checkErr != nil {
		return model.RateLimitStatus{}, r.checkErr
	}
	if r.denyAfter > 0 && r.checks > r.denyAfter {
		return model.RateLimitStatus{Allowed: false, HourlyApplications: r.denyAfter, HourlyLimit: r.denyAfter, Reason: "hourly limit reached"}, nil
	}
	return model.RateLimitStatus{Allowed: true}, nil
}

func (r *fakeRemote) RecordApplication(_ context.Context, o model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return r.recordErr
}

func (r *fakeRemote) recorded() []model.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Outcome(nil), r.outcomes...)
}

// sleeps records requested delays without waiting.
type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.d = append(s.d, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeps) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.d...)
}

// countingThrottle allows everything and counts the tokens taken.
type countingThrottle struct {
	mu sync.Mutex
	n  int
}

func (c *countingThrottle) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return true
}

func (c *countingThrottle) taken() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type denyAll struct{}

func (denyAll) Allow() bool { return false }

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
