package adapter

import (
	"context"
	"regexp"
	"strings"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

var (
	naukriDetailID  = regexp.MustCompile(`job-detail-([a-zA-Z0-9]+)`)
	naukriListingID = regexp.MustCompile(`-(\d{6,})(?:[/?#]|$)`)
)

const naukriApply = `.apply-button, button.applyButton, [data-ga-track*="apply"]`

// NaukriSelectors is Naukri's search and apply vocabulary. The card's apply
// button starts the flow; a chatbot drawer collects extra questions.
func NaukriSelectors() Selectors {
	return Selectors{
		JobCard:      `.srp-jobtuple-wrapper, article.jobTuple`,
		CardTitle:    `a.title`,
		CardCompany:  `a.comp-name, .companyInfo .subTitle`,
		CardLocation: `.locWdth, .loc-wrap .ellipsis, .location`,
		CardActivate: naukriApply,

		DetailTitle:       `.jd-header-title, h1[class*="jd-header-title"]`,
		DetailCompany:     `.jd-header-comp-name a, [class*="jd-header-comp-name"] a`,
		DetailLocation:    `.location a, [class*="location"] a`,
		DetailDescription: `.job-desc, [class*="job-desc"]`,

		Modal: `.chatbot_DrawerContentWrapper`,
		QuestionContainers: []string{
			`.chatbot_ListItem`,
			`.botItem`,
		},
		NextButton:   `.sendMsg`,
		SubmitButton: `.chatbot_Submit, button.save-job-button`,
		Success:      `.apply-message, .already-applied-message`,
		CloseButton:  `.chatbot_DrawerClose, .crossIcon`,

		NextPage: `a.styles_btn-secondary__2AsIP:last-child, a[class*="btn-secondary"]:last-child`,
	}
}

// Naukri is the adapter for naukri.com.
type Naukri struct {
	*base
}

// NewNaukri builds the Naukri adapter.
func NewNaukri(deps Deps) *Naukri {
	return &Naukri{base: newBase(model.PlatformNaukri, NaukriSelectors(), deps)}
}

func (a *Naukri) isDetailPath(p string) bool {
	return strings.Contains(p, "/job-detail") || strings.Contains(p, "/job-listings")
}

func (a *Naukri) IsSearchResultsPage() bool {
	p := pathOf(a.pg)
	if !strings.Contains(hostOf(a.pg), "naukri.com") || a.isDetailPath(p) {
		return false
	}
	return strings.Contains(p, "/jobs") || strings.Contains(p, "/search") || strings.HasSuffix(p, "-jobs")
}

func (a *Naukri) IsJobDetailPage() bool {
	return strings.Contains(hostOf(a.pg), "naukri.com") && a.isDetailPath(pathOf(a.pg))
}

func (a *Naukri) ExtractJobsFromSearchResults() []*model.Job { return a.extractJobs(a) }

func (a *Naukri) ExtractJobData() *model.Job { return a.extractDetail(a) }

// HasEasyApply reports whether the card carries its own apply button.
func (a *Naukri) HasEasyApply(card page.Element) bool {
	if card == nil {
		return false
	}
	return len(card.QueryAll(naukriApply)) > 0
}

// HasAlreadyApplied reports Naukri's "Applied" tag.
func (a *Naukri) HasAlreadyApplied(card page.Element) bool {
	if card == nil {
		return false
	}
	return page.ContainsText(card, `.applied, .already-applied, .tag-applied`, "applied")
}

func (a *Naukri) jobID(card page.Element, jobURL string) string {
	if m := naukriDetailID.FindStringSubmatch(jobURL); m != nil {
		return m[1]
	}
	if m := naukriListingID.FindStringSubmatch(jobURL); m != nil {
		return m[1]
	}
	if card != nil {
		if v, ok := card.Attr("data-job-id"); ok && v != "" {
			return v
		}
	}
	return ""
}

// ApplyToJob clicks the card's apply button and answers the chatbot drawer
// when one opens. Boards that confirm immediately succeed without a drawer.
func (a *Naukri) ApplyToJob(ctx context.Context, job *model.Job) (bool, error) {
	if err := a.activate(ctx, job); err != nil {
		return false, err
	}
	return a.runFlow(ctx, job)
}
