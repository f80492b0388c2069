package adapter_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/adapter"
	"jobmate/apply-service/internal/formfill"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

const linkedInSearchURL = "https://www.linkedin.com/jobs/search/?keywords=golang"

const linkedInResults = `<html><body><ul class="jobs-search-results__list">
<li><div class="job-card-container" data-job-id="111">
  <a class="job-card-list__title" href="/jobs/view/111/?refId=abc">Senior Go Engineer</a>
  <div class="artdeco-entity-lockup__subtitle">Acme</div>
  <div class="artdeco-entity-lockup__caption">Remote</div>
  <ul><li class="job-card-container__footer-item">Easy Apply</li></ul>
</div></li>
<li><div class="job-card-container">
  <a class="job-card-list__title" href="/jobs/view/222/">Platform Engineer</a>
  <div class="artdeco-entity-lockup__subtitle">Initech</div>
  <ul><li class="job-card-container__footer-item">Applied 3 days ago</li><li class="job-card-container__footer-item">Easy Apply</li></ul>
</div></li>
<li><div class="job-card-container">
  <a class="job-card-list__title" href="/jobs/view/333/">Backend Developer</a>
  <ul><li class="job-card-container__footer-item">Promoted</li></ul>
</div></li>
<li><div class="job-card-container"><div class="artdeco-entity-lockup__subtitle">No title here</div></div></li>
</ul>
<button aria-label="View next page">Next</button>
</body></html>`

const profileJSON = `{
  "personal_info": {"phone": "5550100", "email": "ada@example.com"},
  "additional_info": {"sponsorship": "no"},
  "skills": [{"skill": "Go", "experience": "6 years"}]
}`

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func instantDeps(t *testing.T, pg page.Page) adapter.Deps {
	t.Helper()
	profile, err := formfill.ParseProfile([]byte(profileJSON))
	require.NoError(t, err)
	return adapter.Deps{
		Page:    pg,
		Filler:  formfill.New(formfill.WithLogger(quietLogger())),
		Profile: profile,
		Timings: &adapter.Timings{},
		Logger:  quietLogger(),
	}
}

func mustDoc(t *testing.T, rawURL, markup string) *page.Document {
	t.Helper()
	d, err := page.NewDocument(rawURL, markup)
	require.NoError(t, err)
	return d
}

func linkedInWithDeps(t *testing.T, d *page.Document, mutate func(*adapter.Deps)) *adapter.LinkedIn {
	t.Helper()
	deps := instantDeps(t, d)
	if mutate != nil {
		mutate(&deps)
	}
	return adapter.NewLinkedIn(deps)
}

func firstJob(t *testing.T, jobs []*model.Job) *model.Job {
	t.Helper()
	require.NotEmpty(t, jobs)
	return jobs[0]
}
