package queue

import (
	"strings"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// dropReason names why discovery left a job out of the queue.
type dropReason string

const (
	dropApplied     dropReason = "already_applied"
	dropNoEasyApply dropReason = "no_easy_apply"
	dropExcluded    dropReason = "excluded"
	dropDuplicate   dropReason = "duplicate"
)

// cardInspector is the part of an adapter the filter policy needs.
type cardInspector interface {
	HasEasyApply(card page.Element) bool
	HasAlreadyApplied(card page.Element) bool
}

// Policy decides which discovered jobs are queued.
type Policy struct {
	SkipApplied       bool
	SkipNonEasyApply  bool
	ExcludeKeywords   []string
	ExcludedCompanies []string
}

// PolicyFromSettings extracts the filter policy from user settings.
func PolicyFromSettings(s model.Settings) Policy {
	return Policy{
		SkipApplied:       s.SkipAppliedJobs,
		SkipNonEasyApply:  s.SkipNonEasyApply,
		ExcludeKeywords:   s.ExcludeKeywords,
		ExcludedCompanies: s.ExcludedCompanies,
	}
}

// apply keeps jobs in discovery order and counts what it drops by reason.
func (p Policy) apply(insp cardInspector, jobs, processed []*model.Job) ([]*model.Job, map[dropReason]int) {
	kept := make([]*model.Job, 0, len(jobs))
	dropped := make(map[dropReason]int)

	for _, job := range jobs {
		if reason, drop := p.check(insp, job, processed, kept); drop {
			dropped[reason]++
			continue
		}
		kept = append(kept, job)
	}
	return kept, dropped
}

func (p Policy) check(insp cardInspector, job *model.Job, processed, kept []*model.Job) (dropReason, bool) {
	if p.SkipApplied {
		if job.Card != nil && insp.HasAlreadyApplied(job.Card) {
			return dropApplied, true
		}
		if matchesAny(processed, job) {
			return dropApplied, true
		}
	}
	if p.SkipNonEasyApply && !insp.HasEasyApply(job.Card) {
		return dropNoEasyApply, true
	}
	if ContainsExcluded(job, p.ExcludeKeywords, p.ExcludedCompanies) {
		return dropExcluded, true
	}
	if containsJob(kept, job) {
		return dropDuplicate, true
	}
	return "", false
}

// ContainsExcluded reports whether any keyword appears (case-insensitive) in
// the job's title, company or description, or whether the company is one of
// the excluded companies.
func ContainsExcluded(job *model.Job, keywords, companies []string) bool {
	company := strings.ToLower(strings.TrimSpace(job.Company))
	for _, c := range companies {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && c == company {
			return true
		}
	}
	if len(keywords) == 0 {
		return false
	}
	combined := strings.ToLower(job.Title + " " + job.Company + " " + job.Description)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsJob(list []*model.Job, job *model.Job) bool {
	for _, j := range list {
		if j.SameAs(job) {
			return true
		}
	}
	return false
}

func matchesAny(processed []*model.Job, job *model.Job) bool {
	for _, j := range processed {
		if j.Matches(job) {
			return true
		}
	}
	return false
}
