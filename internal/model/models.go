// Package model defines the data structures shared by the apply engine and
// the background service.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobmate/apply-service/internal/page"
)

// Platform identifies a supported job board.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformIndeed   Platform = "indeed"
	PlatformNaukri   Platform = "naukri"
)

// AllPlatforms lists every supported board in dispatch order.
var AllPlatforms = []Platform{PlatformLinkedIn, PlatformIndeed, PlatformNaukri}

// ParsePlatform converts a raw string to a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlatformLinkedIn, PlatformIndeed, PlatformNaukri:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Job is a posting discovered on a search results or detail page.
type Job struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	JobID       string    `json:"jobId,omitempty"`
	Description string    `json:"description,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`

	// Card is the source job card of the render the job was extracted from.
	Card page.Element `json:"-"`
}

// SameAs reports whether two jobs share a dedup key: platform + job id when
// both ids are known, otherwise the (title, company) pair.
func (j *Job) SameAs(other *Job) bool {
	if j == nil || other == nil {
		return false
	}
	if j.JobID != "" && other.JobID != "" {
		return j.JobID == other.JobID && j.Platform == other.Platform
	}
	return strings.EqualFold(j.Title, other.Title) && strings.EqualFold(j.Company, other.Company)
}

// Matches is the looser check used against already-processed jobs: the ids
// agree or the (title, company) pair does.
func (j *Job) Matches(other *Job) bool {
	if j == nil || other == nil {
		return false
	}
	if j.JobID != "" && j.JobID == other.JobID && j.Platform == other.Platform {
		return true
	}
	return strings.EqualFold(j.Title, other.Title) && strings.EqualFold(j.Company, other.Company)
}

// Snapshot returns a copy of the job without its page handle.
func (j *Job) Snapshot() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Card = nil
	return &cp
}

// QueueStats are the counters of one processing session.
type QueueStats struct {
	Discovered int `json:"discovered"`
	Queued     int `json:"queued"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RateLimitStatus is the answer to a check_rate_limit request.
type RateLimitStatus struct {
	Allowed            bool   `json:"allowed"`
	DailyApplications  int    `json:"dailyApplications"`
	DailyLimit         int    `json:"dailyLimit"`
	HourlyApplications int    `json:"hourlyApplications"`
	HourlyLimit        int    `json:"hourlyLimit"`
	Reason             string `json:"reason,omitempty"`
}

// ApplicationRecord is one entry of the application history.
type ApplicationRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	Location  string    `json:"location"`
	URL       string    `json:"url"`
	Platform  Platform  `json:"platform"`
	JobID     string    `json:"jobId,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	AppliedAt time.Time `json:"appliedAt"`
}

// Outcome is the payload of an application_completed message.
type Outcome struct {
	Job    *Job   `json:"job"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// PlatformStats counts outcomes for one board.
type PlatformStats struct {
	Applications int `json:"applications"`
	Successful   int `json:"successful"`
	Failed       int `json:"failed"`
}

// Stats are lifetime counters kept by the background service.
type Stats struct {
	TotalApplications   int                        `json:"totalApplications"`
	Successful          int                        `json:"successful"`
	Failed              int                        `json:"failed"`
	StreakDays          int                        `json:"streakDays"`
	LastApplicationDate string                     `json:"lastApplicationDate,omitempty"` // YYYY-MM-DD
	Platforms           map[Platform]PlatformStats `json:"platforms"`
}

// Session is one apply session as tracked by the background service.
type Session struct {
	ID           string     `json:"id"`
	Platform     Platform   `json:"platform,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Applications int        `json:"applications"`
}

// Export is the full dump returned by export_data.
type Export struct {
	Settings   Settings            `json:"settings"`
	Stats      Stats               `json:"stats"`
	History    []ApplicationRecord `json:"history"`
	Profile    json.RawMessage     `json:"profile,omitempty"`
	ExportedAt time.Time           `json:"exportedAt"`
}
