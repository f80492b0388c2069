package formfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one entry of the profile's skill list.
type Skill struct {
	Skill      string `json:"skill" yaml:"skill"`
	Experience string `json:"experience" yaml:"experience"`
}

// Profile is the user's answer source, addressed by dotted path
// ("personal_info.email", "additional_info.usCitizen").
type Profile struct {
	data   map[string]any
	skills []Skill
}

// NewProfile wraps an already decoded nested record.
func NewProfile(data map[string]any) *Profile {
	p := &Profile{data: data}
	p.skills = decodeSkills(data["skills"])
	return p
}

// ParseProfile decodes a JSON or YAML document into a Profile.
func ParseProfile(raw []byte) (*Profile, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		// YAML is a superset of JSON; fall back for hand-written profiles.
		if yerr := yaml.Unmarshal(raw, &data); yerr != nil {
			return nil, fmt.Errorf("decode profile: %w", yerr)
		}
	}
	if data == nil {
		data = map[string]any{}
	}
	return NewProfile(data), nil
}

// LoadProfile reads a profile file (.json, .yaml or .yml).
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := ParseProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Data returns the underlying record for transport.
func (p *Profile) Data() map[string]any {
	if p == nil {
		return nil
	}
	return p.data
}

// Skills returns the profile's skill list in declaration order.
func (p *Profile) Skills() []Skill {
	if p == nil {
		return nil
	}
	return p.skills
}

// Lookup resolves a dotted path to a scalar rendered as a string. Maps,
// lists and missing keys report false.
func (p *Profile) Lookup(path string) (string, bool) {
	if p == nil || path == "" {
		return "", false
	}
	var cur any = p.data
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	return scalar(cur)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		if x {
			return "Yes", true
		}
		return "No", true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case map[string]any, map[any]any, []any:
		return "", false
	}
	return fmt.Sprint(v), true
}

func decodeSkills(v any) []Skill {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	skills := make([]Skill, 0, len(list))
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		name, _ := scalar(m["skill"])
		exp, _ := scalar(m["experience"])
		if name == "" {
			continue
		}
		skills = append(skills, Skill{Skill: name, Experience: exp})
	}
	return skills
}
