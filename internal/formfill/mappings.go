package formfill

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping ties question label patterns to a profile field.
type Mapping struct {
	Key      string   `yaml:"key"`
	Patterns []string `yaml:"patterns"`
	Path     string   `yaml:"path"`
}

// DefaultMappings returns the built-in answer table. Order matters: the first
// mapping with a pattern contained in the label wins, so narrower phrases sit
// above broader ones. Yes/no questions that mention a place ("commute to
// this location", "authorized to work in this country") sit above the city
// and country fields.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Key: "firstName", Patterns: []string{"first name", "given name"}, Path: "personal_info.firstName"},
		{Key: "lastName", Patterns: []string{"last name", "surname", "family name"}, Path: "personal_info.lastName"},
		{Key: "fullName", Patterns: []string{"full name", "your name"}, Path: "personal_info.fullName"},
		{Key: "email", Patterns: []string{"email"}, Path: "personal_info.email"},
		{Key: "phoneCountryCode", Patterns: []string{"country code"}, Path: "personal_info.phoneCountryCode"},
		{Key: "phone", Patterns: []string{"mobile", "phone"}, Path: "personal_info.phone"},
		{Key: "linkedin", Patterns: []string{"linkedin"}, Path: "personal_info.linkedin"},
		{Key: "github", Patterns: []string{"github"}, Path: "personal_info.github"},
		{Key: "portfolio", Patterns: []string{"portfolio", "website"}, Path: "personal_info.portfolio"},
		{Key: "zip", Patterns: []string{"zip", "postal"}, Path: "personal_info.zip"},
		{Key: "relocate", Patterns: []string{"relocat"}, Path: "additional_info.willingToRelocate"},
		{Key: "sponsorship", Patterns: []string{"sponsor", "visa"}, Path: "additional_info.sponsorship"},
		{Key: "authorized", Patterns: []string{"authorized", "authorised", "eligible to work", "right to work"}, Path: "additional_info.authorized"},
		{Key: "usCitizen", Patterns: []string{"us citizen", "u.s. citizen", "united states citizen"}, Path: "additional_info.usCitizen"},
		{Key: "commute", Patterns: []string{"commut"}, Path: "additional_info.commute"},
		{Key: "hybrid", Patterns: []string{"hybrid"}, Path: "additional_info.hybrid"},
		{Key: "remote", Patterns: []string{"remote"}, Path: "additional_info.remote"},
		{Key: "onsite", Patterns: []string{"onsite", "on-site", "in office", "in-office"}, Path: "additional_info.onsite"},
		{Key: "city", Patterns: []string{"city", "location"}, Path: "personal_info.city"},
		{Key: "country", Patterns: []string{"country"}, Path: "personal_info.country"},
		{Key: "clearance", Patterns: []string{"clearance"}, Path: "additional_info.clearance"},
		{Key: "backgroundCheck", Patterns: []string{"background check", "drug test"}, Path: "additional_info.backgroundCheck"},
		{Key: "driversLicense", Patterns: []string{"driver", "driving licen"}, Path: "additional_info.driversLicense"},
		{Key: "over18", Patterns: []string{"18 years", "over 18", "legal age"}, Path: "additional_info.over18"},
		{Key: "noticePeriod", Patterns: []string{"notice period"}, Path: "additional_info.noticePeriod"},
		{Key: "startDate", Patterns: []string{"start date", "joining", "available to start", "earliest start"}, Path: "additional_info.startDate"},
		{Key: "startImmediately", Patterns: []string{"immediately"}, Path: "additional_info.startImmediately"},
		{Key: "expectedSalary", Patterns: []string{"expected salary", "salary expectation", "desired salary", "expected ctc", "compensation"}, Path: "additional_info.expectedSalary"},
		{Key: "currentSalary", Patterns: []string{"current salary", "current ctc"}, Path: "additional_info.currentSalary"},
		{Key: "education", Patterns: []string{"degree", "education", "qualification"}, Path: "additional_info.highestEducation"},
		{Key: "gpa", Patterns: []string{"gpa", "grade point"}, Path: "additional_info.gpa"},
		{Key: "english", Patterns: []string{"english"}, Path: "additional_info.englishProficiency"},
		{Key: "totalExperience", Patterns: []string{"total experience", "years of experience", "years of work experience"}, Path: "additional_info.totalExperience"},
		{Key: "veteran", Patterns: []string{"veteran"}, Path: "additional_info.veteran"},
		{Key: "disability", Patterns: []string{"disabilit"}, Path: "additional_info.disability"},
		{Key: "gender", Patterns: []string{"gender"}, Path: "additional_info.gender"},
		{Key: "ethnicity", Patterns: []string{"race", "ethnicity", "hispanic"}, Path: "additional_info.ethnicity"},
		{Key: "heardFrom", Patterns: []string{"hear about", "how did you find"}, Path: "additional_info.heardFrom"},
	}
}

// LoadMappings reads an answer table from a YAML file of the form
//
//	- key: sponsorship
//	  patterns: [sponsor, visa]
//	  path: additional_info.sponsorship
func LoadMappings(path string) ([]Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	var out []Mapping
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode mappings: %w", err)
	}
	for i, m := range out {
		if m.Path == "" || len(m.Patterns) == 0 {
			return nil, fmt.Errorf("mapping %d (%q): patterns and path are required", i, m.Key)
		}
	}
	return out, nil
}

// match returns the first mapping with a pattern contained in label.
func match(mappings []Mapping, label string) (Mapping, bool) {
	lower := strings.ToLower(label)
	for _, m := range mappings {
		for _, p := range m.Patterns {
			if p != "" && strings.Contains(lower, strings.ToLower(p)) {
				return m, true
			}
		}
	}
	return Mapping{}, false
}
