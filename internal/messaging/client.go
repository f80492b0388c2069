package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"jobmate/apply-service/internal/model"
)

// Client is the typed agent-side API over a Bus.
type Client struct {
	bus Bus
}

// NewClient wraps bus.
func NewClient(bus Bus) *Client { return &Client{bus: bus} }

// call sends msgType with payload and decodes the reply data into out when
// out is not nil. Non-success replies become *RemoteError.
func (c *Client) call(ctx context.Context, msgType string, payload, out any) error {
	req, err := NewRequest(msgType, payload)
	if err != nil {
		return err
	}
	resp, err := c.bus.Send(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteError{Type: msgType, Message: resp.Error}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", msgType, err)
	}
	return nil
}

// CheckRateLimit asks whether another application is allowed now.
func (c *Client) CheckRateLimit(ctx context.Context) (model.RateLimitStatus, error) {
	var st model.RateLimitStatus
	err := c.call(ctx, TypeCheckRateLimit, nil, &st)
	return st, err
}

// RecordApplication reports one outcome.
func (c *Client) RecordApplication(ctx context.Context, outcome model.Outcome) error {
	return c.call(ctx, TypeApplicationCompleted, outcome, nil)
}

// GetSettings returns the saved settings, defaults filled in.
func (c *Client) GetSettings(ctx context.Context) (model.Settings, error) {
	s := model.DefaultSettings()
	if err := c.call(ctx, TypeGetSettings, nil, &s); err != nil {
		return model.Settings{}, err
	}
	return s.Normalize(), nil
}

func (c *Client) SaveSettings(ctx context.Context, s model.Settings) error {
	return c.call(ctx, TypeSaveSettings, s, nil)
}

// GetUserProfile returns the stored profile document.
func (c *Client) GetUserProfile(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.call(ctx, TypeGetUserProfile, nil, &raw)
	return raw, err
}

func (c *Client) SaveUserProfile(ctx context.Context, profile json.RawMessage) error {
	return c.call(ctx, TypeSaveUserProfile, profile, nil)
}

func (c *Client) GetStats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := c.call(ctx, TypeGetStats, nil, &st)
	return st, err
}

// HistoryQuery filters get_application_history.
type HistoryQuery struct {
	Limit    int            `json:"limit,omitempty"`
	Platform model.Platform `json:"platform,omitempty"`
}

// GetApplicationHistory returns history records, newest first.
func (c *Client) GetApplicationHistory(ctx context.Context, q HistoryQuery) ([]model.ApplicationRecord, error) {
	var out []model.ApplicationRecord
	err := c.call(ctx, TypeGetApplicationHistory, q, &out)
	return out, err
}

// SessionRequest starts a session on a board.
type SessionRequest struct {
	Platform model.Platform `json:"platform"`
}

func (c *Client) StartSession(ctx context.Context, p model.Platform) (model.Session, error) {
	var s model.Session
	err := c.call(ctx, TypeStartSession, SessionRequest{Platform: p}, &s)
	return s, err
}

func (c *Client) StopSession(ctx context.Context) (model.Session, error) {
	var s model.Session
	err := c.call(ctx, TypeStopSession, nil, &s)
	return s, err
}

func (c *Client) ExportData(ctx context.Context) (model.Export, error) {
	var e model.Export
	err := c.call(ctx, TypeExportData, nil, &e)
	return e, err
}
