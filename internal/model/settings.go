package model

import (
	"encoding/json"
	"time"
)

// RadioFallback decides what happens to a radio group when no option matches
// the answer.
type RadioFallback string

const (
	// FallbackFirstOption selects the first option of the group.
	FallbackFirstOption RadioFallback = "first-option"
	// FallbackLeaveEmpty leaves the group untouched for manual completion.
	FallbackLeaveEmpty RadioFallback = "leave-empty"
)

// Settings are the user preferences the engine reads through get_settings.
type Settings struct {
	DailyLimit               int           `json:"dailyLimit"`
	HourlyLimit              int           `json:"hourlyLimit"`
	DelayBetweenApplications time.Duration `json:"-"`
	SkipAppliedJobs          bool          `json:"skipAppliedJobs"`
	SkipNonEasyApply         bool          `json:"skipNonEasyApply"`
	EnabledPlatforms         []Platform    `json:"enabledPlatforms"`
	BatchSize                int           `json:"batchSize"` // advisory
	RadioFallback            RadioFallback `json:"radioFallback"`
	ExcludeKeywords          []string      `json:"excludeKeywords,omitempty"`
	ExcludedCompanies        []string      `json:"excludedCompanies,omitempty"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		DailyLimit:               30,
		HourlyLimit:              10,
		DelayBetweenApplications: 60 * time.Second,
		SkipAppliedJobs:          true,
		SkipNonEasyApply:         true,
		EnabledPlatforms:         append([]Platform(nil), AllPlatforms...),
		BatchSize:                10,
		RadioFallback:            FallbackFirstOption,
	}
}

// Normalize replaces unset numeric and enum fields with their defaults.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if s.DailyLimit <= 0 {
		s.DailyLimit = def.DailyLimit
	}
	if s.HourlyLimit <= 0 {
		s.HourlyLimit = def.HourlyLimit
	}
	if s.DelayBetweenApplications < 0 {
		s.DelayBetweenApplications = 0
	}
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if len(s.EnabledPlatforms) == 0 {
		s.EnabledPlatforms = def.EnabledPlatforms
	}
	switch s.RadioFallback {
	case FallbackFirstOption, FallbackLeaveEmpty:
	default:
		s.RadioFallback = def.RadioFallback
	}
	return s
}

// PlatformEnabled reports whether p is in EnabledPlatforms.
func (s Settings) PlatformEnabled(p Platform) bool {
	for _, e := range s.EnabledPlatforms {
		if e == p {
			return true
		}
	}
	return false
}

type settingsAlias Settings

type settingsJSON struct {
	settingsAlias
	DelayMS int64 `json:"delayBetweenApplications"`
}

// MarshalJSON encodes the inter-application delay in milliseconds.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(settingsJSON{
		settingsAlias: settingsAlias(s),
		DelayMS:       s.DelayBetweenApplications.Milliseconds(),
	})
}

// UnmarshalJSON decodes the inter-application delay from milliseconds.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw settingsJSON
	raw.settingsAlias = settingsAlias(DefaultSettings())
	raw.DelayMS = DefaultSettings().DelayBetweenApplications.Milliseconds()
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Settings(raw.settingsAlias)
	s.DelayBetweenApplications = time.Duration(raw.DelayMS) * time.Millisecond
	return nil
}
