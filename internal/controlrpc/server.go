package controlrpc

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/queue"
)

// Engine is the queue surface the controller drives. *queue.JobQueue
// implements it.
type Engine interface {
	DiscoverJobs(ctx context.Context) (int, error)
	LoadMoreJobs(ctx context.Context) (int, error)
	StartProcessing(ctx context.Context) error
	ResumeProcessing(ctx context.Context) error
	StartAutoDiscovery(ctx context.Context, opts queue.AutoOptions) error
	PauseProcessing()
	StopProcessing()
	Status() queue.Snapshot

	OnProgress(fn func(queue.Progress)) (unsubscribe func())
	OnJobProcessed(fn func(*model.Job)) (unsubscribe func())
	OnComplete(fn func(model.QueueStats)) (unsubscribe func())
}

const (
	defaultStartGrace = 200 * time.Millisecond
	watchBuffer       = 64
)

// Server implements ControllerServer over an Engine.
//
// Start, Resume and AutoDiscover launch a run that outlives the RPC. The run
// uses the server's base context, so cancelling it aborts the run. An error
// returned by the run within the start grace period is reported to the
// caller; later errors are only logged.
type Server struct {
	engine Engine
	base   context.Context
	grace  time.Duration
	log    *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.log = l } }

// WithStartGrace sets how long a launched run is watched for an early error.
func WithStartGrace(d time.Duration) Option { return func(s *Server) { s.grace = d } }

// NewServer returns a Server whose runs are bound to base.
func NewServer(base context.Context, engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine, base: base, grace: defaultStartGrace, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Wait blocks until every launched run has returned.
func (s *Server) Wait() { s.wg.Wait() }

// ─── RPC implementations ──────────────────────────────────────────────────────

// Discover scans the current page and replaces the queue.
func (s *Server) Discover(ctx context.Context, _ *emptypb.Empty) (*DiscoverReply, error) {
	n, err := s.engine.DiscoverJobs(ctx)
	if err != nil {
		return nil, s.toGRPCError(err)
	}
	return &DiscoverReply{Queued: n, Status: s.engine.Status()}, nil
}

// LoadMore loads the next page (or scrolls) and rediscovers.
func (s *Server) LoadMore(ctx context.Context, _ *emptypb.Empty) (*DiscoverReply, error) {
	n, err := s.engine.LoadMoreJobs(ctx)
	if err != nil {
		return nil, s.toGRPCError(err)
	}
	return &DiscoverReply{Queued: n, Status: s.engine.Status()}, nil
}

func (s *Server) Start(_ context.Context, _ *emptypb.Empty) (*queue.Snapshot, error) {
	return s.launch("start", s.engine.StartProcessing)
}

func (s *Server) Resume(_ context.Context, _ *emptypb.Empty) (*queue.Snapshot, error) {
	return s.launch("resume", s.engine.ResumeProcessing)
}

func (s *Server) AutoDiscover(_ context.Context, req *AutoDiscoverRequest) (*queue.Snapshot, error) {
	if req.MaxPages < 0 || req.MaxJobs < 0 || req.PollIntervalMs < 0 || req.LowWatermark < 0 {
		return nil, status.Error(codes.InvalidArgument, "auto-discovery limits must not be negative")
	}
	opts := queue.AutoOptions{
		MaxPages:     req.MaxPages,
		MaxJobs:      req.MaxJobs,
		PollInterval: time.Duration(req.PollIntervalMs) * time.Millisecond,
		LowWatermark: req.LowWatermark,
	}
	return s.launch("auto-discover", func(ctx context.Context) error {
		return s.engine.StartAutoDiscovery(ctx, opts)
	})
}

func (s *Server) Pause(_ context.Context, _ *emptypb.Empty) (*queue.Snapshot, error) {
	s.engine.PauseProcessing()
	snap := s.engine.Status()
	return &snap, nil
}

func (s *Server) Stop(_ context.Context, _ *emptypb.Empty) (*queue.Snapshot, error) {
	s.engine.StopProcessing()
	snap := s.engine.Status()
	return &snap, nil
}

func (s *Server) Status(_ context.Context, _ *emptypb.Empty) (*queue.Snapshot, error) {
	snap := s.engine.Status()
	return &snap, nil
}

// Watch streams queue events until the client goes away or the server's
// base context ends. The first event is the current status. Events are
// dropped, with a warning, when the client cannot keep up.
func (s *Server) Watch(req *WatchRequest, stream WatchServer) error {
	wants := func(t string) bool { return len(req.Types) == 0 || slices.Contains(req.Types, t) }

	events := make(chan *Event, watchBuffer)
	push := func(e *Event) {
		if !wants(e.Type) {
			return
		}
		e.At = timestamppb.Now()
		select {
		case events <- e:
		default:
			s.log.Warn("watch client too slow, event dropped", "type", e.Type)
		}
	}

	unsubs := []func(){
		s.engine.OnProgress(func(p queue.Progress) { push(&Event{Type: EventProgress, Progress: &p}) }),
		s.engine.OnJobProcessed(func(j *model.Job) { push(&Event{Type: EventJobProcessed, Job: j}) }),
		s.engine.OnComplete(func(st model.QueueStats) { push(&Event{Type: EventComplete, Stats: &st}) }),
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	snap := s.engine.Status()
	push(&Event{Type: EventStatus, Status: &snap})

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.base.Done():
			return status.Error(codes.Unavailable, "controller shutting down")
		case e := <-events:
			if err := stream.Send(e); err != nil {
				return err
			}
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// launch runs fn on the base context in the background and waits up to the
// start grace for an early error.
func (s *Server) launch(name string, fn func(context.Context) error) (*queue.Snapshot, error) {
	done := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := fn(s.base)
		done <- err
		if err != nil {
			s.log.Warn("run ended with error", "run", name, "err", err)
			return
		}
		s.log.Info("run ended", "run", name, "state", s.engine.Status().State)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, s.toGRPCError(err)
		}
	case <-time.After(s.grace):
	}
	snap := s.engine.Status()
	return &snap, nil
}

// toGRPCError maps queue errors to gRPC status errors.
func (s *Server) toGRPCError(err error) error {
	switch {
	case errors.Is(err, queue.ErrAlreadyProcessing):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, queue.ErrEmptyQueue),
		errors.Is(err, queue.ErrNotActive),
		errors.Is(err, queue.ErrNotOnSearchResultsPage),
		errors.Is(err, queue.ErrAdapterNotInitialized),
		errors.Is(err, queue.ErrPlatformDisabled),
		errors.Is(err, queue.ErrDiscoveryInProgress):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error("controller call failed", "err", err)
	return status.Error(codes.Internal, "internal server error")
}
