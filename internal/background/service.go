// Package background implements the collaborator the apply agent talks to:
// settings and profile storage, rate-limit counters, lifetime stats, the
// application history and apply sessions.
//
// It is transport-agnostic. Register mounts it on a messaging.Router and
// Handler exposes a read-mostly HTTP API over the same Service.
package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobmate/apply-service/internal/formfill"
	"jobmate/apply-service/internal/history"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/store"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNoActiveSession is returned by StopSession when no session is running.
var ErrNoActiveSession = errors.New("no active session")

// ErrRateLimited is returned by StartSession when no application is allowed.
var ErrRateLimited = errors.New("rate limit exceeded")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Service ─────────────────────────────────────────────────────────────────

// Counters are the rate-limit counters. Day and Hour name the period the
// counts belong to; a stale period reads as zero.
type Counters struct {
	Day    string `json:"day"`
	Daily  int    `json:"daily"`
	Hour   string `json:"hour"`
	Hourly int    `json:"hourly"`
}

// Service holds shared dependencies. Read-modify-write sequences on the
// store are serialised by mu.
type Service struct {
	kv      store.KV
	history history.Repository
	log     *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// NewService returns a configured Service.
func NewService(kv store.KV, hist history.Repository, opts ...Option) *Service {
	s := &Service{kv: kv, history: hist, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ─── Settings & profile ──────────────────────────────────────────────────────

// Settings returns the saved settings, or the defaults before any save.
func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	st := model.DefaultSettings()
	err := s.kv.Get(ctx, store.KeySettings, &st)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st.Normalize(), nil
}

// SaveSettings validates and stores st. Unset fields take their defaults.
func (s *Service) SaveSettings(ctx context.Context, st model.Settings) (model.Settings, error) {
	for _, p := range st.EnabledPlatforms {
		if _, err := model.ParsePlatform(string(p)); err != nil {
			return model.Settings{}, &ValidationError{Msg: err.Error()}
		}
	}
	if st.DelayBetweenApplications < 0 {
		return model.Settings{}, &ValidationError{Msg: "delayBetweenApplications must not be negative"}
	}
	st = st.Normalize()
	if err := s.kv.Set(ctx, store.KeySettings, st); err != nil {
		return model.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.log.Info("settings saved", "dailyLimit", st.DailyLimit, "hourlyLimit", st.HourlyLimit, "platforms", st.EnabledPlatforms)
	return st, nil
}

// Profile returns the stored profile document, or an empty object.
func (s *Service) Profile(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.kv.Get(ctx, store.KeyProfile, &raw)
	if errors.Is(err, store.ErrNotFound) {
		return json.RawMessage(`{}`), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return raw, nil
}

// SaveProfile stores a profile document. JSON and YAML are accepted; the
// profile is always stored as JSON.
func (s *Service) SaveProfile(ctx context.Context, raw []byte) error {
	p, err := formfill.ParseProfile(raw)
	if err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	doc, err := json.Marshal(p.Data())
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("profile is not representable as JSON: %v", err)}
	}
	if err := s.kv.Set(ctx, store.KeyProfile, json.RawMessage(doc)); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.log.Info("profile saved", "skills", len(p.Skills()))
	return nil
}

// ─── Rate limit & counters ───────────────────────────────────────────────────

func (s *Service) counters(ctx context.Context) (Counters, error) {
	var c Counters
	if err := s.kv.Get(ctx, store.KeyCounters, &c); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Counters{}, fmt.Errorf("load counters: %w", err)
	}
	return c.rollover(s.now()), nil
}

// rollover zeroes counts whose period has passed.
func (c Counters) rollover(now time.Time) Counters {
	if day := now.Format(dateLayout); c.Day != day {
		c.Day, c.Daily = day, 0
	}
	if hour := now.Format(hourLayout); c.Hour != hour {
		c.Hour, c.Hourly = hour, 0
	}
	return c
}

// CheckRateLimit reports whether another application is allowed against
// the daily and hourly limits.
func (s *Service) CheckRateLimit(ctx context.Context) (model.RateLimitStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkRateLimit(ctx)
}

func (s *Service) checkRateLimit(ctx context.Context) (model.RateLimitStatus, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return model.RateLimitStatus{}, err
	}
	c, err := s.counters(ctx)
	if err != nil {
		return model.RateLimitStatus{}, err
	}

	res := model.RateLimitStatus{
		Allowed:            true,
		DailyApplications:  c.Daily,
		DailyLimit:         st.DailyLimit,
		HourlyApplications: c.Hourly,
		HourlyLimit:        st.HourlyLimit,
	}
	switch {
	case c.Daily >= st.DailyLimit:
		res.Allowed, res.Reason = false, "daily limit reached"
	case c.Hourly >= st.HourlyLimit:
		res.Allowed, res.Reason = false, "hourly limit reached"
	}
	return res, nil
}

// ResetDaily zeroes the daily counter and settles the streak.
func (s *Service) ResetDaily(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.counters(ctx)
	if err != nil {
		return err
	}
	c.Daily = 0
	if err := s.kv.Set(ctx, store.KeyCounters, c); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}

	stats, err := s.stats(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	today := now.Format(dateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if stats.LastApplicationDate != today && stats.LastApplicationDate != yesterday && stats.StreakDays != 0 {
		stats.StreakDays = 0
		if err := s.kv.Set(ctx, store.KeyStats, stats); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
	}
	s.log.Info("daily counters reset", "day", c.Day, "streakDays", stats.StreakDays)
	return nil
}

// ResetHourly zeroes the hourly counter.
func (s *Service) ResetHourly(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.counters(ctx)
	if err != nil {
		return err
	}
	c.Hourly = 0
	if err := s.kv.Set(ctx, store.KeyCounters, c); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	s.log.Debug("hourly counter reset", "hour", c.Hour)
	return nil
}

// ─── Applications ────────────────────────────────────────────────────────────

// RecordApplication stores one outcome: a history record, the counters, the
// lifetime stats and the active session's count. Every outcome counts
// toward the limits, failed ones included.
func (s *Service) RecordApplication(ctx context.Context, o model.Outcome) (model.ApplicationRecord, error) {
	if o.Job == nil {
		return model.ApplicationRecord{}, &ValidationError{Msg: "outcome has no job"}
	}
	if !model.IsTerminal(o.Status) {
		return model.ApplicationRecord{}, &ValidationError{Msg: fmt.Sprintf("outcome status %q is not terminal", o.Status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := model.ApplicationRecord{
		ID:        uuid.NewString(),
		Title:     o.Job.Title,
		Company:   o.Job.Company,
		Location:  o.Job.Location,
		URL:       o.Job.URL,
		Platform:  o.Job.Platform,
		JobID:     o.Job.JobID,
		Status:    o.Status,
		Error:     o.Error,
		AppliedAt: now.UTC(),
	}
	if err := s.history.Add(ctx, rec); err != nil {
		return model.ApplicationRecord{}, fmt.Errorf("record history: %w", err)
	}

	c, err := s.counters(ctx)
	if err != nil {
		return model.ApplicationRecord{}, err
	}
	c.Daily++
	c.Hourly++
	if err := s.kv.Set(ctx, store.KeyCounters, c); err != nil {
		return model.ApplicationRecord{}, fmt.Errorf("save counters: %w", err)
	}

	stats, err := s.stats(ctx)
	if err != nil {
		return model.ApplicationRecord{}, err
	}
	addToStats(&stats, rec, now)
	if err := s.kv.Set(ctx, store.KeyStats, stats); err != nil {
		return model.ApplicationRecord{}, fmt.Errorf("save stats: %w", err)
	}

	if sess, ok, err := s.activeSession(ctx); err != nil {
		return model.ApplicationRecord{}, err
	} else if ok {
		sess.Applications++
		if err := s.kv.Set(ctx, store.KeySession, sess); err != nil {
			return model.ApplicationRecord{}, fmt.Errorf("save session: %w", err)
		}
	}

	s.log.Info("application recorded",
		"title", rec.Title, "company", rec.Company, "platform", rec.Platform,
		"status", rec.Status, "daily", c.Daily, "hourly", c.Hourly)
	return rec, nil
}

// History returns application records, newest first.
func (s *Service) History(ctx context.Context, q history.Query) ([]model.ApplicationRecord, error) {
	recs, err := s.history.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return recs, nil
}

// ─── Stats ───────────────────────────────────────────────────────────────────

func (s *Service) stats(ctx context.Context) (model.Stats, error) {
	st := model.Stats{Platforms: map[model.Platform]model.PlatformStats{}}
	if err := s.kv.Get(ctx, store.KeyStats, &st); err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	if st.Platforms == nil {
		st.Platforms = map[model.Platform]model.PlatformStats{}
	}
	return st, nil
}

// Stats returns the lifetime counters.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats(ctx)
}

// addToStats counts rec and advances the streak. Applying on consecutive
// days extends it; a gap restarts it at one.
func addToStats(st *model.Stats, rec model.ApplicationRecord, now time.Time) {
	st.TotalApplications++
	ps := st.Platforms[rec.Platform]
	ps.Applications++
	if rec.Status == model.StatusSuccess {
		st.Successful++
		ps.Successful++
	} else {
		st.Failed++
		ps.Failed++
	}
	st.Platforms[rec.Platform] = ps

	today := now.Format(dateLayout)
	switch st.LastApplicationDate {
	case today:
	case now.AddDate(0, 0, -1).Format(dateLayout):
		st.StreakDays++
	default:
		st.StreakDays = 1
	}
	st.LastApplicationDate = today
}
