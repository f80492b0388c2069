package adapter

import (
	"context"
	"regexp"
	"strings"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

var linkedInJobID = regexp.MustCompile(`/jobs/view/(\d+)`)

// LinkedInSelectors is LinkedIn's jobs UI vocabulary.
func LinkedInSelectors() Selectors {
	return Selectors{
		JobCard:      `.job-card-container`,
		CardTitle:    `.job-card-list__title, .job-card-container__link`,
		CardCompany:  `.job-card-container__primary-description, .artdeco-entity-lockup__subtitle`,
		CardLocation: `.job-card-container__metadata-item, .artdeco-entity-lockup__caption`,

		DetailTitle:       `.job-details-jobs-unified-top-card__job-title, .jobs-unified-top-card__job-title`,
		DetailCompany:     `.job-details-jobs-unified-top-card__company-name, .jobs-unified-top-card__company-name`,
		DetailLocation:    `.job-details-jobs-unified-top-card__bullet, .jobs-unified-top-card__bullet`,
		DetailDescription: `.jobs-description__content, #job-details`,

		ApplyButton: `.jobs-apply-button--top-card button, button.jobs-apply-button`,
		Modal:       `.jobs-easy-apply-modal`,
		QuestionContainers: []string{
			`.fb-dash-form-element`,
			`[data-test-form-element]`,
			`[data-live-test-single-line-text-form-component]`,
		},
		NextButton:     `button[aria-label="Continue to next step"]`,
		ReviewButton:   `button[aria-label="Review your application"]`,
		SubmitButton:   `button[aria-label="Submit application"]`,
		FieldError:     `.artdeco-inline-feedback--error`,
		Success:        `#post-apply-modal, .jpac-modal-header`,
		CloseButton:    `button[aria-label="Dismiss"]`,
		DiscardButton:  `button[data-test-dialog-secondary-btn]`,
		DiscardText:    "Discard",
		FollowCheckbox: `#follow-company-checkbox`,

		NextPage: `button[aria-label="View next page"], .artdeco-pagination__button--next`,
		LoadMore: `button.infinite-scroller__show-more-button`,
	}
}

const linkedInFooter = `.job-card-container__footer-item`

// LinkedIn is the adapter for linkedin.com.
type LinkedIn struct {
	*base
}

// NewLinkedIn builds the LinkedIn adapter.
func NewLinkedIn(deps Deps) *LinkedIn {
	return &LinkedIn{base: newBase(model.PlatformLinkedIn, LinkedInSelectors(), deps)}
}

func isLinkedInHost(host string) bool {
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

func (a *LinkedIn) IsSearchResultsPage() bool {
	p := pathOf(a.pg)
	return isLinkedInHost(hostOf(a.pg)) && strings.Contains(p, "/jobs/") && !strings.Contains(p, "/view/")
}

func (a *LinkedIn) IsJobDetailPage() bool {
	return isLinkedInHost(hostOf(a.pg)) && strings.Contains(pathOf(a.pg), "/jobs/view/")
}

func (a *LinkedIn) ExtractJobsFromSearchResults() []*model.Job { return a.extractJobs(a) }

func (a *LinkedIn) ExtractJobData() *model.Job { return a.extractDetail(a) }

// HasEasyApply looks for the "Easy Apply" badge in the card footer.
func (a *LinkedIn) HasEasyApply(card page.Element) bool {
	if card == nil {
		return false
	}
	return page.ContainsText(card, linkedInFooter+", li", "easy apply")
}

// HasAlreadyApplied looks for LinkedIn's "Applied" or "Viewed" footer marker.
func (a *LinkedIn) HasAlreadyApplied(card page.Element) bool {
	if card == nil {
		return false
	}
	for _, item := range card.QueryAll(linkedInFooter) {
		t := strings.ToLower(item.Text())
		if strings.Contains(t, "applied") || strings.Contains(t, "viewed") {
			return true
		}
	}
	return false
}

func (a *LinkedIn) jobID(card page.Element, jobURL string) string {
	if m := linkedInJobID.FindStringSubmatch(jobURL); m != nil {
		return m[1]
	}
	if card != nil {
		for _, name := range []string{"data-job-id", "data-occludable-job-id"} {
			if v, ok := card.Attr(name); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// ApplyToJob opens the card, starts Easy Apply and steps through the modal.
func (a *LinkedIn) ApplyToJob(ctx context.Context, job *model.Job) (bool, error) {
	if err := a.activate(ctx, job); err != nil {
		return false, err
	}
	if err := a.openApply(ctx); err != nil {
		return false, err
	}
	return a.runFlow(ctx, job)
}
