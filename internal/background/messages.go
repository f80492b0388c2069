package background

import (
	"context"
	"encoding/json"
	"fmt"

	"jobmate/apply-service/internal/history"
	"jobmate/apply-service/internal/messaging"
	"jobmate/apply-service/internal/model"
)

// Register mounts a handler for every message type on r.
func (s *Service) Register(r *messaging.Router) {
	r.Handle(messaging.TypeCheckRateLimit, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.CheckRateLimit(ctx)
	})
	r.Handle(messaging.TypeApplicationCompleted, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var o model.Outcome
		if err := decode(raw, &o); err != nil {
			return nil, err
		}
		return s.RecordApplication(ctx, o)
	})
	r.Handle(messaging.TypeGetSettings, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.Settings(ctx)
	})
	r.Handle(messaging.TypeSaveSettings, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var st model.Settings
		if err := decode(raw, &st); err != nil {
			return nil, err
		}
		return s.SaveSettings(ctx, st)
	})
	r.Handle(messaging.TypeGetUserProfile, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.Profile(ctx)
	})
	r.Handle(messaging.TypeSaveUserProfile, func(ctx context.Context, raw json.RawMessage) (any, error) {
		if len(raw) == 0 {
			return nil, &ValidationError{Msg: "profile payload is empty"}
		}
		return nil, s.SaveProfile(ctx, raw)
	})
	r.Handle(messaging.TypeGetStats, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.Stats(ctx)
	})
	r.Handle(messaging.TypeGetApplicationHistory, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var q messaging.HistoryQuery
		if len(raw) > 0 {
			if err := decode(raw, &q); err != nil {
				return nil, err
			}
		}
		return s.History(ctx, history.Query{Limit: q.Limit, Platform: q.Platform})
	})
	r.Handle(messaging.TypeStartSession, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req messaging.SessionRequest
		if len(raw) > 0 {
			if err := decode(raw, &req); err != nil {
				return nil, err
			}
		}
		return s.StartSession(ctx, req.Platform)
	})
	r.Handle(messaging.TypeStopSession, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.StopSession(ctx)
	})
	r.Handle(messaging.TypeExportData, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return s.Export(ctx)
	})
}

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return &ValidationError{Msg: "missing payload"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ValidationError{Msg: fmt.Sprintf("invalid payload: %v", err)}
	}
	return nil
}
