package background

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobmate/apply-service/internal/history"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/store"
)

func (s *Service) activeSession(ctx context.Context) (model.Session, bool, error) {
	var sess model.Session
	err := s.kv.Get(ctx, store.KeySession, &sess)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	return sess, sess.ID != "" && sess.EndedAt == nil, nil
}

// StartSession opens an apply session on platform. A session still open is
// closed first. Starting is refused while the rate limit denies
// applications.
func (s *Service) StartSession(ctx context.Context, platform model.Platform) (model.Session, error) {
	if platform != "" {
		if _, err := model.ParsePlatform(string(platform)); err != nil {
			return model.Session{}, &ValidationError{Msg: err.Error()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rl, err := s.checkRateLimit(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if !rl.Allowed {
		return model.Session{}, fmt.Errorf("%w: %s", ErrRateLimited, rl.Reason)
	}

	if prev, ok, err := s.activeSession(ctx); err != nil {
		return model.Session{}, err
	} else if ok {
		ended := s.now().UTC()
		prev.EndedAt = &ended
		s.log.Warn("closing session left open", "session", prev.ID, "applications", prev.Applications)
	}

	sess := model.Session{
		ID:        uuid.NewString(),
		Platform:  platform,
		StartedAt: s.now().UTC(),
	}
	if err := s.kv.Set(ctx, store.KeySession, sess); err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.log.Info("session started", "session", sess.ID, "platform", platform)
	return sess, nil
}

// StopSession closes the active session and returns it.
func (s *Service) StopSession(ctx context.Context) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok, err := s.activeSession(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, ErrNoActiveSession
	}
	ended := s.now().UTC()
	sess.EndedAt = &ended
	if err := s.kv.Set(ctx, store.KeySession, sess); err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.log.Info("session stopped", "session", sess.ID, "applications", sess.Applications,
		"duration", ended.Sub(sess.StartedAt).Round(time.Second))
	return sess, nil
}

// Export dumps settings, stats, the full history and the profile.
func (s *Service) Export(ctx context.Context) (model.Export, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return model.Export{}, err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return model.Export{}, err
	}
	recs, err := s.History(ctx, history.Query{Limit: history.MaxRecords})
	if err != nil {
		return model.Export{}, err
	}
	profile, err := s.Profile(ctx)
	if err != nil {
		return model.Export{}, err
	}
	return model.Export{
		Settings:   settings,
		Stats:      stats,
		History:    recs,
		Profile:    profile,
		ExportedAt: s.now().UTC(),
	}, nil
}
