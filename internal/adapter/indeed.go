package adapter

import (
	"context"
	"net/url"
	"strings"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// IndeedSelectors is Indeed's search and Indeed Apply vocabulary.
func IndeedSelectors() Selectors {
	return Selectors{
		JobCard:      `.job_seen_beacon`,
		CardTitle:    `h2.jobTitle a, h2.jobTitle span[title]`,
		CardLink:     `h2.jobTitle a`,
		CardCompany:  `[data-testid="company-name"], .companyName`,
		CardLocation: `[data-testid="text-location"], .companyLocation`,
		CardActivate: `h2.jobTitle a`,

		DetailTitle:       `h1.jobsearch-JobInfoHeader-title, [data-testid="jobsearch-JobInfoHeader-title"]`,
		DetailCompany:     `[data-testid="inlineHeader-companyName"], [data-company-name]`,
		DetailLocation:    `[data-testid="inlineHeader-companyLocation"], [data-testid="job-location"]`,
		DetailDescription: `#jobDescriptionText`,

		ApplyButton: `#indeedApplyButton, button[aria-label*="Apply now"]`,
		Modal:       `#ia-container, .ia-BasePage`,
		QuestionContainers: []string{
			`.ia-Questions-item`,
			`[data-testid="input-q"]`,
		},
		NextButton:   `button[data-testid="ia-continueButton"], .ia-continueButton`,
		ReviewButton: `button[data-testid="ia-reviewButton"]`,
		SubmitButton: `button[data-testid="ia-submitButton"], .ia-SubmitButton`,
		FieldError:   `.ia-InlineError, [data-testid="input-error"]`,
		Success:      `.ia-PostApply, [data-testid="ia-PostApply"]`,
		CloseButton:  `button[aria-label="Close"], .ia-CloseButton`,

		NextPage: `a[data-testid="pagination-page-next"]`,
	}
}

// Indeed is the adapter for indeed.com and its country sites.
type Indeed struct {
	*base
}

// NewIndeed builds the Indeed adapter.
func NewIndeed(deps Deps) *Indeed {
	return &Indeed{base: newBase(model.PlatformIndeed, IndeedSelectors(), deps)}
}

func (a *Indeed) IsSearchResultsPage() bool {
	p := pathOf(a.pg)
	return strings.Contains(hostOf(a.pg), "indeed.com") && strings.Contains(p, "/jobs") && !strings.Contains(p, "/viewjob")
}

func (a *Indeed) IsJobDetailPage() bool {
	return strings.Contains(hostOf(a.pg), "indeed.com") && strings.Contains(pathOf(a.pg), "/viewjob")
}

func (a *Indeed) ExtractJobsFromSearchResults() []*model.Job { return a.extractJobs(a) }

func (a *Indeed) ExtractJobData() *model.Job { return a.extractDetail(a) }

// HasEasyApply reports the "Easily apply" Indeed Apply marker.
func (a *Indeed) HasEasyApply(card page.Element) bool {
	if card == nil {
		return false
	}
	if len(card.QueryAll(`[data-testid="indeedApply"], .iaLabel, .ialbl`)) > 0 {
		return true
	}
	return page.ContainsText(card, `.jobMetaDataGroup, .underShelfFooter, li, span`, "easily apply")
}

// HasAlreadyApplied reports Indeed's "Applied" snippet.
func (a *Indeed) HasAlreadyApplied(card page.Element) bool {
	if card == nil {
		return false
	}
	return len(card.QueryAll(`[data-testid="applied-snippet"], .applied-snippet`)) > 0
}

func (a *Indeed) jobID(card page.Element, jobURL string) string {
	if card != nil {
		if v, ok := card.Attr("data-jk"); ok && v != "" {
			return v
		}
		if el, ok := page.QueryIn(card, "[data-jk]"); ok {
			if v, _ := el.Attr("data-jk"); v != "" {
				return v
			}
		}
	}
	if u, err := url.Parse(jobURL); err == nil {
		if jk := u.Query().Get("jk"); jk != "" {
			return jk
		}
		if vjk := u.Query().Get("vjk"); vjk != "" {
			return vjk
		}
	}
	return ""
}

// ApplyToJob opens the job in the right-hand pane, starts Indeed Apply and
// steps through its pages.
func (a *Indeed) ApplyToJob(ctx context.Context, job *model.Job) (bool, error) {
	if err := a.activate(ctx, job); err != nil {
		return false, err
	}
	if err := a.openApply(ctx); err != nil {
		return false, err
	}
	return a.runFlow(ctx, job)
}
