package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"jobmate/apply-service/internal/formfill"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

const (
	unknownCompany  = "Unknown Company"
	unknownLocation = "Unknown Location"
)

// ErrMissingCard is returned by ApplyToJob for jobs without a live card.
var ErrMissingCard = errors.New("job has no source card on the current page")

// cardReader is the board-specific half of extraction.
type cardReader interface {
	HasEasyApply(card page.Element) bool
	HasAlreadyApplied(card page.Element) bool
	jobID(card page.Element, jobURL string) string
}

// base carries the mechanics shared by every board.
type base struct {
	platform  model.Platform
	pg        page.Page
	sel       Selectors
	timings   Timings
	filler    *formfill.Filler
	profile   *formfill.Profile
	prefilter bool
	maxSteps  int
	log       *slog.Logger
	now       func() time.Time
}

func newBase(p model.Platform, sel Selectors, deps Deps) *base {
	b := &base{
		platform:  p,
		pg:        deps.Page,
		sel:       sel,
		timings:   DefaultTimings(),
		filler:    deps.Filler,
		profile:   deps.Profile,
		prefilter: deps.Prefilter[p],
		maxSteps:  deps.MaxSteps,
		log:       deps.Logger,
		now:       time.Now,
	}
	if deps.Timings != nil {
		b.timings = *deps.Timings
	}
	if b.maxSteps <= 0 {
		b.maxSteps = DefaultMaxSteps
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.filler == nil {
		b.filler = formfill.New(formfill.WithLogger(b.log))
	}
	b.log = b.log.With("platform", string(p))
	return b
}

func (b *base) Platform() model.Platform { return b.platform }

// ─── Extraction ──────────────────────────────────────────────────────────────

func (b *base) extractJobs(r cardReader) []*model.Job {
	cards := b.pg.QueryAll(b.sel.JobCard)
	jobs := make([]*model.Job, 0, len(cards))
	var malformed, prefiltered int

	for i, card := range cards {
		job, err := b.extractCard(r, card)
		if err != nil {
			malformed++
			b.log.Warn("skipping malformed job card", "index", i, "err", err)
			continue
		}
		if job == nil {
			malformed++
			continue
		}
		if b.prefilter && (r.HasAlreadyApplied(card) || !r.HasEasyApply(card)) {
			prefiltered++
			continue
		}
		jobs = append(jobs, job)
	}

	b.log.Info("extracted jobs from search results",
		"cards", len(cards), "jobs", len(jobs), "malformed", malformed, "prefiltered", prefiltered)
	return jobs
}

func (b *base) extractCard(r cardReader, card page.Element) (job *model.Job, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			job, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	titleEl, ok := page.QueryIn(card, b.sel.CardTitle)
	if !ok {
		return nil, nil
	}
	title := strings.TrimSpace(titleEl.Text())
	if title == "" {
		return nil, nil
	}

	linkEl := titleEl
	if b.sel.CardLink != "" {
		if el, ok := page.QueryIn(card, b.sel.CardLink); ok {
			linkEl = el
		}
	}
	href, _ := linkEl.Attr("href")
	jobURL := b.absURL(href)

	return &model.Job{
		Title:       title,
		Company:     orDefault(page.TextIn(card, b.sel.CardCompany), unknownCompany),
		Location:    orDefault(page.TextIn(card, b.sel.CardLocation), unknownLocation),
		URL:         jobURL,
		Platform:    b.platform,
		JobID:       r.jobID(card, jobURL),
		ExtractedAt: b.now(),
		Status:      model.StatusPending,
		Card:        card,
	}, nil
}

func (b *base) extractDetail(r cardReader) (job *model.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Warn("job detail extraction failed", "err", rec)
			job = nil
		}
	}()

	titleEl, ok := page.Query(b.pg, b.sel.DetailTitle)
	if !ok || strings.TrimSpace(titleEl.Text()) == "" {
		b.log.Warn("job detail page has no title")
		return nil
	}
	pageURL := b.pg.URL().String()
	root, _ := page.Query(b.pg, "body")

	return &model.Job{
		Title:       strings.TrimSpace(titleEl.Text()),
		Company:     orDefault(textOf(b.pg, b.sel.DetailCompany), unknownCompany),
		Location:    orDefault(textOf(b.pg, b.sel.DetailLocation), unknownLocation),
		Description: textOf(b.pg, b.sel.DetailDescription),
		URL:         pageURL,
		Platform:    b.platform,
		JobID:       r.jobID(root, pageURL),
		ExtractedAt: b.now(),
		Status:      model.StatusPending,
	}
}

// ─── Pagination ──────────────────────────────────────────────────────────────

func (b *base) NavigateToNextPage(ctx context.Context) (bool, error) {
	if b.sel.NextPage == "" {
		return false, nil
	}
	btn, ok := page.VisibleElement(b.pg, b.sel.NextPage)
	if !ok || btn.Disabled() {
		return false, nil
	}
	if err := b.pg.Click(ctx, btn); err != nil {
		return false, fmt.Errorf("click next page: %w", err)
	}
	b.log.Info("navigated to next results page")
	return true, nil
}

func (b *base) ScrollForMoreJobs(ctx context.Context) (bool, error) {
	before := b.pg.ScrollHeight()
	if err := b.pg.ScrollToBottom(ctx); err != nil {
		return false, fmt.Errorf("scroll: %w", err)
	}
	if b.sel.LoadMore != "" {
		if btn, ok := page.VisibleElement(b.pg, b.sel.LoadMore); ok && !btn.Disabled() {
			if err := b.pg.Click(ctx, btn); err != nil {
				b.log.Warn("load-more click failed", "err", err)
			}
		}
	}
	if err := page.Sleep(ctx, b.timings.ScrollSettle); err != nil {
		return false, err
	}
	return b.pg.ScrollHeight() > before, nil
}

// ─── Application flow ────────────────────────────────────────────────────────

// activate opens the job from its card.
func (b *base) activate(ctx context.Context, job *model.Job) error {
	if job == nil || job.Card == nil {
		return ErrMissingCard
	}
	sel := b.sel.CardActivate
	if sel == "" {
		sel = b.sel.CardTitle
	}
	target := job.Card
	if !job.Card.Matches(sel) {
		el, ok := page.QueryIn(job.Card, sel)
		if !ok {
			return fmt.Errorf("card activator %q not found", sel)
		}
		target = el
	}
	if err := b.pg.Click(ctx, target); err != nil {
		return fmt.Errorf("activate card: %w", err)
	}
	return page.Sleep(ctx, b.timings.ActivateSettle)
}

// openApply clicks the board's fast-apply button once it appears.
func (b *base) openApply(ctx context.Context) error {
	if b.sel.ApplyButton == "" {
		return nil
	}
	btn, err := page.WaitFor(ctx, b.pg, b.sel.ApplyButton, b.timings.ButtonWait)
	if err != nil {
		return fmt.Errorf("fast-apply button: %w", err)
	}
	if err := b.pg.Click(ctx, btn); err != nil {
		return fmt.Errorf("click fast-apply: %w", err)
	}
	return nil
}

// runFlow drives the modal: Opened → {Filling → Advancing}* → Success or
// manual intervention. The modal is closed on every exit.
func (b *base) runFlow(ctx context.Context, job *model.Job) (bool, error) {
	opened := b.sel.Modal
	if b.sel.Success != "" {
		opened += ", " + b.sel.Success
	}
	if _, err := page.WaitFor(ctx, b.pg, opened, b.timings.ModalWait); err != nil {
		return false, fmt.Errorf("apply modal: %w", err)
	}
	defer b.closeModal(ctx)

	log := b.log.With("job", job.Title, "company", job.Company)
	for step := 1; step <= b.maxSteps; step++ {
		if b.succeeded() {
			log.Info("application submitted", "steps", step-1)
			return true, nil
		}

		containers := b.questions()
		if len(containers) > 0 {
			rep := b.filler.Fill(ctx, b.pg, b.profile, containers)
			log.Debug("filled step", "step", step, "fields", rep.Fields, "filled", rep.Filled,
				"unmatched", rep.Unmatched, "fallbacks", rep.Fallbacks, "errors", rep.Errors)
		}

		if btn, ok := b.button(b.sel.NextButton); ok {
			if err := b.advance(ctx, btn); err != nil {
				return false, err
			}
		} else if btn, ok := b.button(b.sel.ReviewButton); ok {
			if err := b.advance(ctx, btn); err != nil {
				return false, err
			}
		} else if btn, ok := b.button(b.sel.SubmitButton); ok {
			return b.submit(ctx, btn, log)
		} else {
			log.Info("no way forward in apply modal, manual intervention required", "step", step)
			return false, nil
		}

		if b.sel.FieldError != "" {
			if _, ok := page.VisibleElement(b.pg, b.sel.FieldError); ok {
				log.Info("step has unanswered required questions, manual intervention required", "step", step)
				return false, nil
			}
		}
	}

	if b.succeeded() {
		return true, nil
	}
	log.Info("apply modal exceeded step limit", "maxSteps", b.maxSteps)
	return false, nil
}

func (b *base) questions() []page.Element {
	scope := page.FirstMatch(b.pg, b.sel.Modal)
	if len(scope) == 0 {
		return page.FirstMatch(b.pg, b.sel.QuestionContainers...)
	}
	return page.FirstMatch(scope[0], b.sel.QuestionContainers...)
}

func (b *base) button(selector string) (page.Element, bool) {
	if selector == "" {
		return nil, false
	}
	for _, el := range b.pg.QueryAll(selector) {
		if el.Visible() && !el.Disabled() {
			return el, true
		}
	}
	return nil, false
}

func (b *base) advance(ctx context.Context, btn page.Element) error {
	if err := b.pg.Click(ctx, btn); err != nil {
		return fmt.Errorf("advance step: %w", err)
	}
	return page.Sleep(ctx, b.timings.StepSettle)
}

func (b *base) submit(ctx context.Context, btn page.Element, log *slog.Logger) (bool, error) {
	if b.sel.FollowCheckbox != "" {
		if cb, ok := page.Query(b.pg, b.sel.FollowCheckbox); ok && cb.Checked() {
			if err := b.pg.SetChecked(ctx, cb, false); err != nil {
				log.Warn("could not uncheck follow-company", "err", err)
			}
		}
	}
	if err := b.pg.Click(ctx, btn); err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	if b.sel.Success == "" {
		return true, nil
	}
	if _, err := page.WaitFor(ctx, b.pg, b.sel.Success, b.timings.SuccessWait); err != nil {
		if errors.Is(err, page.ErrWaitTimeout) {
			log.Info("submission not confirmed, manual intervention required")
			return false, nil
		}
		return false, err
	}
	log.Info("application submitted")
	return true, nil
}

func (b *base) succeeded() bool {
	if b.sel.Success == "" {
		return false
	}
	_, ok := page.VisibleElement(b.pg, b.sel.Success)
	return ok
}

// closeModal dismisses the modal and confirms the discard dialog if one
// appears. Failures are logged only.
func (b *base) closeModal(ctx context.Context) {
	// the job's own context may already be done; closing must still run
	ctx = context.WithoutCancel(ctx)

	if btn, ok := b.button(b.sel.CloseButton); ok {
		if err := b.pg.Click(ctx, btn); err != nil {
			b.log.Warn("close modal failed", "err", err)
			return
		}
		_ = page.Sleep(ctx, b.timings.CloseSettle)
	}
	if b.sel.DiscardButton == "" {
		return
	}
	for _, btn := range b.pg.QueryAll(b.sel.DiscardButton) {
		if !btn.Visible() {
			continue
		}
		if b.sel.DiscardText != "" && !strings.Contains(strings.ToLower(btn.Text()), strings.ToLower(b.sel.DiscardText)) {
			continue
		}
		if err := b.pg.Click(ctx, btn); err != nil {
			b.log.Warn("discard click failed", "err", err)
		}
		_ = page.Sleep(ctx, b.timings.CloseSettle)
		return
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (b *base) absURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.pg.URL().ResolveReference(ref).String()
}

func textOf(pg page.Page, selector string) string {
	if selector == "" {
		return ""
	}
	el, ok := page.Query(pg, selector)
	if !ok {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func hostOf(pg page.Page) string { return strings.ToLower(pg.URL().Hostname()) }

func pathOf(pg page.Page) string { return strings.ToLower(pg.URL().Path) }
