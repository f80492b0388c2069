package controlrpc_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"jobmate/apply-service/internal/controlrpc"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/queue"
)

// fakeEngine records calls and lets tests drive listeners.
type fakeEngine struct {
	mu          sync.Mutex
	state       model.ProcessingState
	queued      int
	discoverErr error
	startErr    error
	autoOpts    queue.AutoOptions
	stopped     chan struct{}

	progress  []func(queue.Progress)
	processed []func(*model.Job)
	complete  []func(model.QueueStats)
}

func newEngine() *fakeEngine {
	return &fakeEngine{state: model.StateIdle, stopped: make(chan struct{})}
}

func (e *fakeEngine) DiscoverJobs(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.discoverErr != nil {
		return 0, e.discoverErr
	}
	e.queued = 3
	return 3, nil
}

func (e *fakeEngine) LoadMoreJobs(ctx context.Context) (int, error) { return e.DiscoverJobs(ctx) }

// StartProcessing blocks until StopProcessing or ctx ends.
func (e *fakeEngine) StartProcessing(ctx context.Context) error {
	e.mu.Lock()
	if e.startErr != nil {
		e.mu.Unlock()
		return e.startErr
	}
	e.state = model.StateProcessing
	e.mu.Unlock()

	select {
	case <-e.stopped:
	case <-ctx.Done():
	}
	e.mu.Lock()
	e.state = model.StateIdle
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) ResumeProcessing(context.Context) error { return queue.ErrNotActive }

func (e *fakeEngine) StartAutoDiscovery(ctx context.Context, opts queue.AutoOptions) error {
	e.mu.Lock()
	e.autoOpts = opts
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) PauseProcessing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = model.StatePaused
}

func (e *fakeEngine) StopProcessing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stopped:
	default:
		close(e.stopped)
	}
}

func (e *fakeEngine) Status() queue.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return queue.Snapshot{State: e.state, QueueSize: e.queued, Platform: model.PlatformLinkedIn}
}

func (e *fakeEngine) OnProgress(fn func(queue.Progress)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, fn)
	return func() {}
}

func (e *fakeEngine) OnJobProcessed(fn func(*model.Job)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processed = append(e.processed, fn)
	return func() {}
}

func (e *fakeEngine) OnComplete(fn func(model.QueueStats)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.complete = append(e.complete, fn)
	return func() {}
}

func (e *fakeEngine) emitJob(j *model.Job) {
	e.mu.Lock()
	fns := append([]func(*model.Job){}, e.processed...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(j)
	}
}

func (e *fakeEngine) emitComplete(st model.QueueStats) {
	e.mu.Lock()
	fns := append([]func(model.QueueStats){}, e.complete...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// startController serves engine over an in-memory listener.
func startController(t *testing.T, engine controlrpc.Engine) (*controlrpc.Client, *controlrpc.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	srv := controlrpc.NewServer(ctx, engine,
		controlrpc.WithStartGrace(20*time.Millisecond),
		controlrpc.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	controlrpc.RegisterControllerServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	cc, err := controlrpc.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		cancel()
		_ = cc.Close()
		gs.Stop()
		srv.Wait()
	})
	return controlrpc.NewClient(cc), srv
}

func TestController_DiscoverAndStatus(t *testing.T) {
	engine := newEngine()
	c, _ := startController(t, engine)
	ctx := context.Background()

	reply, err := c.Discover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, reply.Queued)
	assert.Equal(t, 3, reply.Status.QueueSize)

	snap, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, snap.State)
	assert.Equal(t, model.PlatformLinkedIn, snap.Platform)

	engine.mu.Lock()
	engine.discoverErr = queue.ErrNotOnSearchResultsPage
	engine.mu.Unlock()
	_, err = c.Discover(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "not a search results page")
}

func TestController_StartPauseStop(t *testing.T) {
	engine := newEngine()
	c, srv := startController(t, engine)
	ctx := context.Background()

	snap, err := c.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StateProcessing, snap.State, "Start returns while the run continues")

	snap, err = c.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatePaused, snap.State)

	_, err = c.Stop(ctx)
	require.NoError(t, err)
	srv.Wait()

	snap, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, snap.State)
}

func TestController_EarlyRunErrorsAreReturned(t *testing.T) {
	engine := newEngine()
	engine.startErr = queue.ErrEmptyQueue
	c, _ := startController(t, engine)
	ctx := context.Background()

	_, err := c.Start(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	engine.mu.Lock()
	engine.startErr = queue.ErrAlreadyProcessing
	engine.mu.Unlock()
	_, err = c.Start(ctx)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.Resume(ctx)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestController_AutoDiscoverOptions(t *testing.T) {
	engine := newEngine()
	c, srv := startController(t, engine)
	ctx := context.Background()

	_, err := c.AutoDiscover(ctx, &controlrpc.AutoDiscoverRequest{MaxPages: 2, PollIntervalMs: 1500})
	require.NoError(t, err)
	srv.Wait()

	engine.mu.Lock()
	got := engine.autoOpts
	engine.mu.Unlock()
	assert.Equal(t, queue.AutoOptions{MaxPages: 2, PollInterval: 1500 * time.Millisecond}, got)

	_, err = c.AutoDiscover(ctx, &controlrpc.AutoDiscoverRequest{MaxJobs: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestController_Watch(t *testing.T) {
	engine := newEngine()
	c, _ := startController(t, engine)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := c.Watch(ctx, &controlrpc.WatchRequest{
		Types: []string{controlrpc.EventStatus, controlrpc.EventJobProcessed, controlrpc.EventComplete},
	})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, controlrpc.EventStatus, first.Type)
	require.NotNil(t, first.Status)
	require.NotNil(t, first.At)
	assert.WithinDuration(t, time.Now(), first.At.AsTime(), time.Minute)

	engine.emitJob(&model.Job{Title: "Go Developer", Company: "Acme", Status: model.StatusSuccess})
	engine.emitComplete(model.QueueStats{Processed: 1, Successful: 1})

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, controlrpc.EventJobProcessed, ev.Type)
	require.NotNil(t, ev.Job)
	assert.Equal(t, "Go Developer", ev.Job.Title)

	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, controlrpc.EventComplete, ev.Type)
	assert.Equal(t, 1, ev.Stats.Successful)
}
