// Package messaging is the request/response channel between the apply agent
// and the background service. Requests are keyed by a message type; every
// reply is a {success, data, error} envelope.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Message types understood by the background service.
const (
	TypeCheckRateLimit        = "check_rate_limit"
	TypeApplicationCompleted  = "application_completed"
	TypeGetSettings           = "get_settings"
	TypeSaveSettings          = "save_settings"
	TypeGetUserProfile        = "get_user_profile"
	TypeSaveUserProfile       = "save_user_profile"
	TypeGetStats              = "get_stats"
	TypeGetApplicationHistory = "get_application_history"
	TypeStartSession          = "start_session"
	TypeStopSession           = "stop_session"
	TypeExportData            = "export_data"
)

var (
	// ErrUnknownType is returned for a message type no handler serves.
	ErrUnknownType = errors.New("unknown message type")
	// ErrTimeout is returned when no reply arrives in time.
	ErrTimeout = errors.New("message reply timed out")
)

// RemoteError is a non-success reply.
type RemoteError struct {
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Type, e.Message)
}

// Request is one message on the channel.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	ReplyTo string          `json:"replyTo,omitempty"`
}

// Response is the reply envelope.
type Response struct {
	ID      string          `json:"id,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Bus sends a request and waits for its reply.
type Bus interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Handler serves one message type. The returned value is marshalled into
// the reply's data field.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Router dispatches requests to handlers by type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *slog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{handlers: make(map[string]Handler), log: logger}
}

// Handle registers h for msgType, replacing any previous handler.
func (r *Router) Handle(msgType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = h
}

// Types lists the registered message types.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch runs the handler for req and wraps its result. Handler errors
// and panics become failed envelopes.
func (r *Router) Dispatch(ctx context.Context, req Request) (resp Response) {
	resp.ID = req.ID
	r.mu.RLock()
	h, ok := r.handlers[req.Type]
	r.mu.RUnlock()
	if !ok {
		resp.Error = fmt.Sprintf("%s: %q", ErrUnknownType, req.Type)
		return resp
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("message handler panicked", "type", req.Type, "panic", rec)
			resp = Response{ID: req.ID, Error: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	data, err := h(ctx, req.Payload)
	if err != nil {
		r.log.Warn("message handler failed", "type", req.Type, "err", err)
		resp.Error = err.Error()
		return resp
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			resp.Error = fmt.Sprintf("marshal reply: %v", err)
			return resp
		}
		resp.Data = raw
	}
	resp.Success = true
	return resp
}

// LocalBus delivers requests to a router in the same process.
type LocalBus struct {
	router *Router
}

// NewLocalBus returns a bus over router.
func NewLocalBus(router *Router) *LocalBus { return &LocalBus{router: router} }

func (b *LocalBus) Send(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return b.router.Dispatch(ctx, req), nil
}

// NewRequest builds a request, marshalling payload when it is not nil.
func NewRequest(msgType string, payload any) (Request, error) {
	req := Request{Type: msgType}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	req.Payload = raw
	return req, nil
}
