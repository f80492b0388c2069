// Package formfill answers the questions of one application step from the
// user's profile.
//
// Each question container is classified by the control nested inside it
// (free text, radio group or dropdown), its label is matched against the
// answer table or the skill list, and the control is filled through the page
// primitives. Nothing is filled when no answer is known.
package formfill

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

const (
	textInputs  = `input[type="text"], input[type="number"], input[type="tel"], input[type="email"], input[type="url"], input:not([type]), textarea`
	radioInputs = `input[type="radio"]`
	selectInput = `select`
)

// labelSelectors are tried in order; the aria-hidden copy is the visible
// text on boards that duplicate labels for screen readers.
var labelSelectors = []string{
	`legend span[aria-hidden="true"]`,
	`legend`,
	`label span[aria-hidden="true"]`,
	`label`,
}

var (
	experienceLabel = regexp.MustCompile(`\b(years?|yrs)\b.{0,30}\bexperience\b|how many years|experience.{0,40}\b(years?|yrs)\b`)
	leadingNumber   = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
)

type fieldKind int

const (
	kindUnknown fieldKind = iota
	kindText
	kindRadio
	kindSelect
)

func (k fieldKind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindRadio:
		return "radio"
	case kindSelect:
		return "select"
	}
	return "unknown"
}

// FallbackEvent describes a radio group whose answer matched no option.
type FallbackEvent struct {
	Label   string
	Answer  string
	Policy  model.RadioFallback
	Chosen  string // empty when the group was left alone
	Options []string
}

// Report summarises one Fill call.
type Report struct {
	Fields    int
	Filled    int
	Unmatched int
	Fallbacks int
	Errors    int
}

// Filler fills question containers. It holds no profile; the caller passes
// one per call.
type Filler struct {
	mappings   []Mapping
	fallback   model.RadioFallback
	onFallback func(FallbackEvent)
	logger     *slog.Logger
}

// Option configures a Filler.
type Option func(*Filler)

// WithMappings replaces the built-in answer table.
func WithMappings(m []Mapping) Option { return func(f *Filler) { f.mappings = m } }

// WithRadioFallback sets the policy for radio groups with no matching option.
func WithRadioFallback(p model.RadioFallback) Option {
	return func(f *Filler) { f.fallback = p }
}

// WithFallbackObserver registers fn to receive every radio fallback.
func WithFallbackObserver(fn func(FallbackEvent)) Option {
	return func(f *Filler) { f.onFallback = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Filler) { f.logger = l } }

// New returns a Filler using the default answer table and the first-option
// radio fallback.
func New(opts ...Option) *Filler {
	f := &Filler{
		mappings: DefaultMappings(),
		fallback: model.FallbackFirstOption,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RadioFallback returns the configured radio fallback policy.
func (f *Filler) RadioFallback() model.RadioFallback { return f.fallback }

// Fill answers every container it can. Failures are logged per field and
// never abort the step.
func (f *Filler) Fill(ctx context.Context, pg page.Page, profile *Profile, containers []page.Element) Report {
	var rep Report
	for _, c := range containers {
		if ctx.Err() != nil {
			break
		}
		rep.Fields++
		filled, fellBack, err := f.fillOne(ctx, pg, profile, c)
		switch {
		case err != nil:
			rep.Errors++
			f.logger.Warn("fill question failed", "err", err)
		case filled:
			rep.Filled++
		default:
			rep.Unmatched++
		}
		if fellBack {
			rep.Fallbacks++
		}
	}
	return rep
}

func (f *Filler) fillOne(ctx context.Context, pg page.Page, profile *Profile, c page.Element) (filled, fellBack bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	kind := classify(c)
	if kind == kindUnknown {
		return false, false, nil
	}
	label := labelOf(c)
	if label == "" {
		return false, false, nil
	}

	answer, ok := f.Answer(profile, label)
	if !ok {
		f.logger.Debug("no answer for question", "label", label, "kind", kind)
		return false, false, nil
	}

	switch kind {
	case kindText:
		return f.fillText(ctx, pg, c, label, answer)
	case kindRadio:
		return f.fillRadio(ctx, pg, c, label, answer)
	default:
		return f.fillSelect(ctx, pg, c, label, answer)
	}
}

// Answer returns the value for a question label: a skill lookup for "years
// of experience" questions, otherwise the answer table.
func (f *Filler) Answer(profile *Profile, label string) (string, bool) {
	lower := strings.ToLower(label)
	if experienceLabel.MatchString(lower) {
		if v, ok := experienceFor(profile.Skills(), lower); ok {
			return v, true
		}
	}
	m, ok := match(f.mappings, lower)
	if !ok {
		return "", false
	}
	v, ok := profile.Lookup(m.Path)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (f *Filler) fillText(ctx context.Context, pg page.Page, c page.Element, label, answer string) (bool, bool, error) {
	input, ok := page.QueryIn(c, textInputs)
	if !ok {
		return false, false, nil
	}
	if input.Value() == answer {
		return true, false, nil
	}
	if err := pg.SetValue(ctx, input, answer); err != nil {
		return false, false, fmt.Errorf("%q: %w", label, err)
	}
	return true, false, nil
}

func (f *Filler) fillRadio(ctx context.Context, pg page.Page, c page.Element, label, answer string) (bool, bool, error) {
	options := c.QueryAll(radioInputs)
	if len(options) == 0 {
		return false, false, nil
	}
	want := normalizeYesNo(answer)

	for _, opt := range options {
		if optionMatches(c, opt, want) {
			if opt.Checked() {
				return true, false, nil
			}
			if err := pg.Click(ctx, opt); err != nil {
				return false, false, fmt.Errorf("%q: %w", label, err)
			}
			return true, false, nil
		}
	}

	ev := FallbackEvent{Label: label, Answer: answer, Policy: f.fallback}
	for _, opt := range options {
		ev.Options = append(ev.Options, optionLabel(c, opt))
	}

	var clickErr error
	if f.fallback == model.FallbackFirstOption {
		ev.Chosen = ev.Options[0]
		if ev.Chosen == "" {
			ev.Chosen = "option 1"
		}
		clickErr = pg.Click(ctx, options[0])
	}
	f.logger.Warn("radio answer matched no option",
		"label", label, "answer", answer, "policy", f.fallback, "chosen", ev.Chosen)
	if f.onFallback != nil {
		f.onFallback(ev)
	}
	if clickErr != nil {
		return false, true, fmt.Errorf("%q: %w", label, clickErr)
	}
	return ev.Chosen != "", true, nil
}

func (f *Filler) fillSelect(ctx context.Context, pg page.Page, c page.Element, label, answer string) (bool, bool, error) {
	sel, ok := page.QueryIn(c, selectInput)
	if !ok {
		return false, false, nil
	}
	candidates := []string{strings.TrimSpace(answer)}
	if yn := normalizeYesNo(answer); yn != candidates[0] {
		candidates = append(candidates, yn)
	}
	for _, opt := range sel.QueryAll("option") {
		text := strings.TrimSpace(opt.Text())
		for _, want := range candidates {
			if text != want {
				continue
			}
			value, ok := opt.Attr("value")
			if !ok {
				value = text
			}
			if err := pg.SelectOption(ctx, sel, value); err != nil {
				return false, false, fmt.Errorf("%q: %w", label, err)
			}
			return true, false, nil
		}
	}
	return false, false, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func classify(c page.Element) fieldKind {
	switch {
	case len(c.QueryAll(radioInputs)) > 0:
		return kindRadio
	case len(c.QueryAll(selectInput)) > 0:
		return kindSelect
	case len(c.QueryAll(textInputs)) > 0:
		return kindText
	}
	return kindUnknown
}

func labelOf(c page.Element) string {
	for _, sel := range labelSelectors {
		if t := cleanLabel(page.TextIn(c, sel)); t != "" {
			return t
		}
	}
	return ""
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Required")
	s = strings.TrimSpace(strings.TrimRight(s, "* "))
	return s
}

// normalizeYesNo maps boolean-ish answers to the "Yes"/"No" option casing.
func normalizeYesNo(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true":
		return "Yes"
	case "no", "n", "false":
		return "No"
	}
	return strings.TrimSpace(v)
}

func optionMatches(c, opt page.Element, want string) bool {
	if v, ok := opt.Attr("value"); ok && strings.EqualFold(strings.TrimSpace(v), want) {
		return true
	}
	return strings.EqualFold(optionLabel(c, opt), want)
}

func optionLabel(c, opt page.Element) string {
	if id, ok := opt.Attr("id"); ok && id != "" {
		if t := page.TextIn(c, fmt.Sprintf(`label[for=%q]`, id)); t != "" {
			return t
		}
	}
	v, _ := opt.Attr("value")
	return v
}

// experienceFor picks the skill whose name appears in label, preferring a
// whole-word match and then the longest name, and falls back to an "Other"
// entry.
func experienceFor(skills []Skill, label string) (string, bool) {
	var best *Skill
	bestScore := 0
	var other *Skill
	for i := range skills {
		s := &skills[i]
		name := strings.ToLower(strings.TrimSpace(s.Skill))
		if name == "" {
			continue
		}
		if name == "other" {
			if other == nil {
				other = s
			}
			continue
		}
		if !strings.Contains(label, name) {
			continue
		}
		score := len(name)
		if containsWord(label, name) {
			score += 1000
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	if best == nil {
		best = other
	}
	if best == nil {
		return "", false
	}
	if m := leadingNumber.FindStringSubmatch(best.Experience); m != nil {
		return m[1], true
	}
	exp := strings.TrimSpace(best.Experience)
	return exp, exp != ""
}

func containsWord(s, word string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		if !wordRune(s, start-1) && !wordRune(s, end) {
			return true
		}
		from = start + 1
	}
}

func wordRune(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	r := rune(s[i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
