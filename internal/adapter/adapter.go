// Package adapter translates each job board's page structure into normalised
// jobs and drives its in-page application flow.
//
// Every board implements Adapter. The shared mechanics (card scanning,
// pagination, the bounded modal stepper) live in base and are parameterised
// by a per-board Selectors table, so adding a board means adding a table and
// its card predicates, not branching in the queue.
package adapter

import (
	"context"
	"log/slog"
	"time"

	"jobmate/apply-service/internal/formfill"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// DefaultMaxSteps bounds the modal stepper.
const DefaultMaxSteps = 10

// Adapter is the capability set every supported board provides.
type Adapter interface {
	Platform() model.Platform

	IsSearchResultsPage() bool
	IsJobDetailPage() bool

	// ExtractJobsFromSearchResults returns one job per readable card.
	// Malformed cards are logged and skipped.
	ExtractJobsFromSearchResults() []*model.Job
	// ExtractJobData returns the job shown on a detail page, or nil when
	// the title cannot be read.
	ExtractJobData() *model.Job

	HasEasyApply(card page.Element) bool
	HasAlreadyApplied(card page.Element) bool

	// ApplyToJob runs the board's fast-apply flow for job. It returns false
	// when the flow needs manual completion and an error only when an
	// element the flow depends on is missing.
	ApplyToJob(ctx context.Context, job *model.Job) (bool, error)

	NavigateToNextPage(ctx context.Context) (bool, error)
	ScrollForMoreJobs(ctx context.Context) (bool, error)
}

// Selectors is a board's page vocabulary. Comma-separated values are CSS
// unions; QuestionContainers is tried in priority order.
type Selectors struct {
	JobCard      string
	CardTitle    string
	CardLink     string // anchor carrying the job URL; CardTitle when empty
	CardCompany  string
	CardLocation string
	CardActivate string // clicked to open the job; CardTitle when empty

	DetailTitle       string
	DetailCompany     string
	DetailLocation    string
	DetailDescription string

	ApplyButton        string // fast-apply entry point; empty when CardActivate starts the flow
	Modal              string
	QuestionContainers []string
	NextButton         string
	ReviewButton       string
	SubmitButton       string
	FieldError         string
	Success            string
	CloseButton        string
	DiscardButton      string
	DiscardText        string
	FollowCheckbox     string

	NextPage string
	LoadMore string
}

// Timings are the settle delays and wait timeouts of a flow. Every wait is
// bounded.
type Timings struct {
	ActivateSettle time.Duration
	ButtonWait     time.Duration
	ModalWait      time.Duration
	StepSettle     time.Duration
	SuccessWait    time.Duration
	CloseSettle    time.Duration
	ScrollSettle   time.Duration
}

// DefaultTimings mirrors how long the boards take to react in a browser.
func DefaultTimings() Timings {
	return Timings{
		ActivateSettle: 3 * time.Second,
		ButtonWait:     10 * time.Second,
		ModalWait:      5 * time.Second,
		StepSettle:     2 * time.Second,
		SuccessWait:    5 * time.Second,
		CloseSettle:    time.Second,
		ScrollSettle:   2 * time.Second,
	}
}

// Deps are the collaborators an adapter is built with.
type Deps struct {
	Page    page.Page
	Filler  *formfill.Filler
	Profile *formfill.Profile
	// Timings defaults to DefaultTimings when nil.
	Timings *Timings
	// Prefilter makes the adapter drop applied and non-fast-apply cards at
	// extraction instead of leaving that to the queue's filter policy.
	Prefilter map[model.Platform]bool
	MaxSteps  int
	Logger    *slog.Logger
}
