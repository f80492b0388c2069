package model_test

import (
	"testing"

	"jobmate/apply-service/internal/model"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range []string{"pending", "success", "failed"} {
		got, err := model.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	if _, err := model.ParseStatus("APPLIED"); err == nil {
		t.Error("ParseStatus(\"APPLIED\") expected error, got nil")
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to model.Status
		want     bool
	}{
		{model.StatusPending, model.StatusSuccess, true},
		{model.StatusPending, model.StatusFailed, true},
		{"", model.StatusSuccess, true},
		{model.StatusSuccess, model.StatusFailed, false},
		{model.StatusFailed, model.StatusSuccess, false},
		{model.StatusSuccess, model.StatusSuccess, false},
		{model.StatusPending, model.StatusPending, false},
	}
	for _, c := range cases {
		if got := model.IsTransitionAllowed(c.from, c.to); got != c.want {
			t.Errorf("IsTransitionAllowed(%q → %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if model.IsTerminal(model.StatusPending) {
		t.Error("pending must not be terminal")
	}
	if !model.IsTerminal(model.StatusSuccess) || !model.IsTerminal(model.StatusFailed) {
		t.Error("success and failed must be terminal")
	}
}

// ── ProcessingState ────────────────────────────────────────────────────────

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.ProcessingState
		want     bool
	}{
		{model.StateIdle, model.StateDiscovering, true},
		{model.StateDiscovering, model.StateIdle, true},
		{model.StateIdle, model.StateProcessing, true},
		{model.StateProcessing, model.StatePaused, true},
		{model.StatePaused, model.StateProcessing, true},
		{model.StatePaused, model.StateIdle, true},
		{model.StateIdle, model.StatePaused, false},
		{model.StateDiscovering, model.StateProcessing, false},
	}
	for _, c := range cases {
		if got := model.CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s → %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

// ── Job dedup key ──────────────────────────────────────────────────────────

func TestJobSameAs(t *testing.T) {
	a := &model.Job{Title: "Go Engineer", Company: "Acme", Platform: model.PlatformLinkedIn, JobID: "42"}

	cases := []struct {
		name  string
		other *model.Job
		want  bool
	}{
		{"same id", &model.Job{Title: "Other", Company: "Other", Platform: model.PlatformLinkedIn, JobID: "42"}, true},
		{"same id other platform", &model.Job{Platform: model.PlatformIndeed, JobID: "42"}, false},
		{"different id same title", &model.Job{Title: "Go Engineer", Company: "Acme", Platform: model.PlatformLinkedIn, JobID: "43"}, false},
		{"no id same pair", &model.Job{Title: "go engineer", Company: "ACME"}, true},
		{"no id different company", &model.Job{Title: "Go Engineer", Company: "Initech"}, false},
		{"nil", nil, false},
	}
	for _, c := range cases {
		if got := a.SameAs(c.other); got != c.want {
			t.Errorf("%s: SameAs = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestJobMatches(t *testing.T) {
	a := &model.Job{Title: "Go Engineer", Company: "Acme", Platform: model.PlatformLinkedIn, JobID: "42"}

	cases := []struct {
		name  string
		other *model.Job
		want  bool
	}{
		{"same id", &model.Job{Title: "Other", Company: "Other", Platform: model.PlatformLinkedIn, JobID: "42"}, true},
		{"reposted under new id", &model.Job{Title: "Go Engineer", Company: "acme", Platform: model.PlatformLinkedIn, JobID: "43"}, true},
		{"different id and pair", &model.Job{Title: "Go Engineer", Company: "Initech", Platform: model.PlatformLinkedIn, JobID: "43"}, false},
		{"both ids empty", &model.Job{Title: "Rust Engineer", Company: "Acme"}, false},
		{"nil", nil, false},
	}
	for _, c := range cases {
		if got := a.Matches(c.other); got != c.want {
			t.Errorf("%s: Matches = %v, want %v", c.name, got, c.want)
		}
	}
	if (&model.Job{Title: "A"}).Matches(&model.Job{Title: "B"}) {
		t.Error("jobs without ids matched on differing titles")
	}
}

func TestParsePlatform(t *testing.T) {
	if p, err := model.ParsePlatform(" LinkedIn "); err != nil || p != model.PlatformLinkedIn {
		t.Errorf("ParsePlatform(LinkedIn) = %q, %v", p, err)
	}
	if _, err := model.ParsePlatform("monster"); err == nil {
		t.Error("ParsePlatform(monster) expected error")
	}
}
