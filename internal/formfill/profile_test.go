package formfill_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/apply-service/internal/formfill"
)

func TestProfile_Lookup(t *testing.T) {
	p := mustProfile(t, `{
		"personal_info": {"firstName": "Ada", "yearsCoding": 7},
		"additional_info": {"sponsorship": false, "expectedSalary": {"amount": 120000, "currency": "USD"}}
	}`)

	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"personal_info.firstName", "Ada", true},
		{"personal_info.yearsCoding", "7", true},
		{"additional_info.sponsorship", "No", true},
		{"additional_info.expectedSalary.amount", "120000", true},
		{"additional_info.expectedSalary", "", false},
		{"additional_info.missing", "", false},
		{"personal_info.firstName.deeper", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := p.Lookup(c.path)
		assert.Equal(t, c.ok, ok, c.path)
		assert.Equal(t, c.want, got, c.path)
	}
}

func TestProfile_SkillsFromYAML(t *testing.T) {
	p := mustProfile(t, profileYAML)
	skills := p.Skills()
	require.Len(t, skills, 3)
	assert.Equal(t, formfill.Skill{Skill: "Java", Experience: "3 years"}, skills[0])
}

func TestLoadProfileAndMappings(t *testing.T) {
	dir := t.TempDir()

	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(profileYAML), 0o644))
	p, err := formfill.LoadProfile(profilePath)
	require.NoError(t, err)
	v, ok := p.Lookup("personal_info.email")
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", v)

	mappingsPath := filepath.Join(dir, "mappings.yaml")
	require.NoError(t, os.WriteFile(mappingsPath, []byte(`
- key: nickname
  patterns: [nickname, preferred name]
  path: personal_info.firstName
`), 0o644))
	m, err := formfill.LoadMappings(mappingsPath)
	require.NoError(t, err)

	f := formfill.New(formfill.WithMappings(m), formfill.WithLogger(quietLogger()))
	answer, ok := f.Answer(p, "Preferred name")
	require.True(t, ok)
	assert.Equal(t, "Ada", answer)

	_, ok = f.Answer(p, "Email")
	assert.False(t, ok, "custom table replaces the defaults")

	require.NoError(t, os.WriteFile(mappingsPath, []byte(`- key: broken`), 0o644))
	_, err = formfill.LoadMappings(mappingsPath)
	assert.Error(t, err)
}

func TestDefaultMappings_OrderResolvesOverlaps(t *testing.T) {
	p := mustProfile(t, `{"personal_info": {"city": "Pune", "phoneCountryCode": "+91", "country": "India"},
		"additional_info": {"willingToRelocate": "Yes", "commute": "Yes", "authorized": "Yes",
			"sponsorship": "No", "usCitizen": "No", "onsite": "Yes"}}`)
	f := formfill.New(formfill.WithLogger(quietLogger()))

	cases := []struct{ label, want string }{
		{"Are you willing to relocation?", "Yes"},
		{"Current location", "Pune"},
		{"Phone country code", "+91"},
		{"Country of residence", "India"},
		{"Will you be able to reliably commute to this job's location?", "Yes"},
		{"Are you legally authorized to work in this country?", "Yes"},
		{"Will you now or in the future require visa sponsorship to work in this country?", "No"},
		{"Are you a U.S. citizen living in this country?", "No"},
		{"Are you comfortable working onsite at this location?", "Yes"},
	}
	for _, c := range cases {
		got, ok := f.Answer(p, c.label)
		assert.True(t, ok, c.label)
		assert.Equal(t, c.want, got, c.label)
	}
}
