package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/adapter"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

func TestPagePredicates(t *testing.T) {
	cases := []struct {
		name           string
		url            string
		build          func(adapter.Deps) adapter.Adapter
		search, detail bool
	}{
		{"linkedin search", "https://www.linkedin.com/jobs/search/?keywords=go", linkedIn, true, false},
		{"linkedin collections", "https://www.linkedin.com/jobs/collections/recommended/", linkedIn, true, false},
		{"linkedin detail", "https://www.linkedin.com/jobs/view/123/", linkedIn, false, true},
		{"linkedin feed", "https://www.linkedin.com/feed/", linkedIn, false, false},
		{"linkedin lookalike host", "https://notlinkedin.com/jobs/search/", linkedIn, false, false},
		{"indeed search", "https://www.indeed.com/jobs?q=go", indeed, true, false},
		{"indeed country site", "https://uk.indeed.com/jobs?q=go", indeed, true, false},
		{"indeed detail", "https://www.indeed.com/viewjob?jk=abc", indeed, false, true},
		{"indeed home", "https://www.indeed.com/", indeed, false, false},
		{"naukri keyword page", "https://www.naukri.com/golang-jobs", naukri, true, false},
		{"naukri search", "https://www.naukri.com/jobs-in-india", naukri, true, false},
		{"naukri listing", "https://www.naukri.com/job-listings-go-dev-acme-120324500123", naukri, false, true},
		{"naukri wrong host", "https://www.example.com/golang-jobs", naukri, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := tc.build(instantDeps(t, mustDoc(t, tc.url, `<body></body>`)))
			assert.Equal(t, tc.search, a.IsSearchResultsPage(), "IsSearchResultsPage")
			assert.Equal(t, tc.detail, a.IsJobDetailPage(), "IsJobDetailPage")
		})
	}
}

func linkedIn(d adapter.Deps) adapter.Adapter { return adapter.NewLinkedIn(d) }
func indeed(d adapter.Deps) adapter.Adapter   { return adapter.NewIndeed(d) }
func naukri(d adapter.Deps) adapter.Adapter   { return adapter.NewNaukri(d) }

const indeedResults = `<html><body><div id="mosaic-jobResults">
<div class="job_seen_beacon">
  <h2 class="jobTitle"><a href="/rc/clk?jk=abc123&from=serp" data-jk="abc123"><span title="Go Developer">Go Developer</span></a></h2>
  <span data-testid="company-name">Hooli</span>
  <div data-testid="text-location">Austin, TX</div>
  <span class="iaLabel">Easily apply</span>
</div>
<div class="job_seen_beacon">
  <h2 class="jobTitle"><a href="/viewjob?jk=def456">Data Engineer</a></h2>
  <span data-testid="company-name">Pied Piper</span>
  <div data-testid="applied-snippet">Applied</div>
</div>
</div>
<a data-testid="pagination-page-next" href="/jobs?q=go&start=10">Next</a>
</body></html>`

func TestIndeed_ExtractJobsFromSearchResults(t *testing.T) {
	d := mustDoc(t, "https://www.indeed.com/jobs?q=go", indeedResults)
	a := adapter.NewIndeed(instantDeps(t, d))

	jobs := a.ExtractJobsFromSearchResults()
	require.Len(t, jobs, 2)

	assert.Equal(t, "Go Developer", jobs[0].Title)
	assert.Equal(t, "Hooli", jobs[0].Company)
	assert.Equal(t, "Austin, TX", jobs[0].Location)
	assert.Equal(t, "abc123", jobs[0].JobID)
	assert.Equal(t, "https://www.indeed.com/rc/clk?jk=abc123&from=serp", jobs[0].URL)
	assert.True(t, a.HasEasyApply(jobs[0].Card))
	assert.False(t, a.HasAlreadyApplied(jobs[0].Card))

	assert.Equal(t, "def456", jobs[1].JobID, "falls back to the jk query parameter")
	assert.False(t, a.HasEasyApply(jobs[1].Card))
	assert.True(t, a.HasAlreadyApplied(jobs[1].Card))
}

func TestIndeed_ExtractJobData(t *testing.T) {
	d := mustDoc(t, "https://www.indeed.com/viewjob?jk=xyz789", `<html><body>
<h1 class="jobsearch-JobInfoHeader-title">Go Developer</h1>
<div data-testid="inlineHeader-companyName">Hooli</div>
<div data-testid="inlineHeader-companyLocation">Remote</div>
<div id="jobDescriptionText">Write Go.</div>
</body></html>`)
	job := adapter.NewIndeed(instantDeps(t, d)).ExtractJobData()
	require.NotNil(t, job)
	assert.Equal(t, "xyz789", job.JobID)
	assert.Equal(t, "Hooli", job.Company)
	assert.Equal(t, "Remote", job.Location)
	assert.Equal(t, "Write Go.", job.Description)
}

func TestIndeed_ApplyToJob(t *testing.T) {
	d := mustDoc(t, "https://www.indeed.com/jobs?q=go", indeedResults)
	a := adapter.NewIndeed(instantDeps(t, d))

	d.OnClick("h2.jobTitle a", func(d *page.Document) {
		require.NoError(t, d.Append("body", `<button id="indeedApplyButton">Apply now</button>`))
	})
	d.OnClick("#indeedApplyButton", func(d *page.Document) {
		require.NoError(t, d.Append("body", `<div id="ia-container">
  <div class="ia-Questions-item">
    <fieldset><legend><span aria-hidden="true">Will you require visa sponsorship?</span></legend>
      <label><input type="radio" name="q1" value="Yes">Yes</label>
      <label><input type="radio" name="q1" value="No">No</label>
    </fieldset>
  </div>
  <button data-testid="ia-submitButton">Submit your application</button>
</div>`))
	})
	var answer string
	d.OnClick(`button[data-testid="ia-submitButton"]`, func(d *page.Document) {
		if el, ok := page.Query(d, `input[name="q1"][checked]`); ok {
			answer, _ = el.Attr("value")
		}
		d.Remove("#ia-container")
		require.NoError(t, d.Append("body", `<div class="ia-PostApply">Your application has been submitted!</div>`))
	})

	ok, err := a.ApplyToJob(context.Background(), firstJob(t, a.ExtractJobsFromSearchResults()))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "No", answer)
}

const naukriResults = `<html><body><div class="list">
<article class="jobTuple">
  <a class="title" href="https://www.naukri.com/job-listings-go-developer-acme-bengaluru-3-to-5-years-120324500123">Go Developer</a>
  <a class="comp-name">Acme</a>
  <span class="locWdth">Bengaluru</span>
  <button class="apply-button">Apply</button>
</article>
<article class="jobTuple" data-job-id="n-77">
  <a class="title" href="/jobs/saved">Backend Engineer</a>
  <span class="tag-applied">Applied</span>
</article>
</div></body></html>`

func TestNaukri_ExtractAndPredicates(t *testing.T) {
	d := mustDoc(t, "https://www.naukri.com/golang-jobs", naukriResults)
	a := adapter.NewNaukri(instantDeps(t, d))

	jobs := a.ExtractJobsFromSearchResults()
	require.Len(t, jobs, 2)
	assert.Equal(t, "120324500123", jobs[0].JobID)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "Bengaluru", jobs[0].Location)
	assert.True(t, a.HasEasyApply(jobs[0].Card))
	assert.False(t, a.HasAlreadyApplied(jobs[0].Card))

	assert.Equal(t, "n-77", jobs[1].JobID)
	assert.Equal(t, "https://www.naukri.com/jobs/saved", jobs[1].URL)
	assert.False(t, a.HasEasyApply(jobs[1].Card))
	assert.True(t, a.HasAlreadyApplied(jobs[1].Card))
}

func TestNaukri_ExtractJobData(t *testing.T) {
	d := mustDoc(t, "https://www.naukri.com/job-listings-go-dev-acme-120324500123?src=jobsearch", `<html><body>
<h1 class="jd-header-title">Go Developer</h1>
<div class="jd-header-comp-name"><a>Acme</a></div>
</body></html>`)
	job := adapter.NewNaukri(instantDeps(t, d)).ExtractJobData()
	require.NotNil(t, job)
	assert.Equal(t, "120324500123", job.JobID)
	assert.Equal(t, "Acme", job.Company)
}

func TestNaukri_ApplyToJob_DirectConfirmation(t *testing.T) {
	d := mustDoc(t, "https://www.naukri.com/golang-jobs", naukriResults)
	a := adapter.NewNaukri(instantDeps(t, d))
	d.OnClick(".apply-button", func(d *page.Document) {
		require.NoError(t, d.Append("body", `<div class="apply-message">You have successfully applied</div>`))
	})

	ok, err := a.ApplyToJob(context.Background(), firstJob(t, a.ExtractJobsFromSearchResults()))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNaukri_ApplyToJob_NoApplyButton(t *testing.T) {
	d := mustDoc(t, "https://www.naukri.com/golang-jobs", naukriResults)
	a := adapter.NewNaukri(instantDeps(t, d))
	jobs := a.ExtractJobsFromSearchResults()
	require.Len(t, jobs, 2)

	ok, err := a.ApplyToJob(context.Background(), jobs[1])
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFactory(t *testing.T) {
	f := adapter.NewFactory(instantDeps(t, mustDoc(t, "https://www.linkedin.com/jobs/", `<body></body>`)))

	cases := map[string]model.Platform{
		"https://www.linkedin.com/jobs/search/": model.PlatformLinkedIn,
		"www.indeed.com":                        model.PlatformIndeed,
		"https://in.indeed.com/jobs?q=go":       model.PlatformIndeed,
		"naukri.com":                            model.PlatformNaukri,
		"HTTPS://WWW.NAUKRI.COM/golang-jobs":    model.PlatformNaukri,
	}
	for target, want := range cases {
		a, err := f.Create(target)
		require.NoError(t, err, target)
		assert.Equal(t, want, a.Platform(), target)
		assert.True(t, f.IsSupported(target))
	}

	_, err := f.Create("https://www.monster.com/jobs")
	require.ErrorIs(t, err, adapter.ErrUnsupportedPlatform)
	var unsupported *adapter.UnsupportedPlatformError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "https://www.monster.com/jobs", unsupported.Target)

	assert.False(t, f.IsSupported(""))
	_, err = f.Resolve("")
	assert.ErrorIs(t, err, adapter.ErrUnsupportedPlatform)
}

func TestFactory_Register(t *testing.T) {
	f := adapter.NewFactory(instantDeps(t, mustDoc(t, "https://www.glassdoor.com/", `<body></body>`)))
	require.False(t, f.IsSupported("glassdoor.com"))

	f.Register(model.Platform("glassdoor"), "glassdoor.com", func(d adapter.Deps) adapter.Adapter {
		return adapter.NewIndeed(d)
	})
	p, err := f.Resolve("https://www.glassdoor.com/Job/index.htm")
	require.NoError(t, err)
	assert.Equal(t, model.Platform("glassdoor"), p)
}
