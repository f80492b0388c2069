package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"jobmate/apply-service/internal/config"
	"jobmate/apply-service/internal/controlrpc"
	"jobmate/apply-service/internal/db"
	"jobmate/apply-service/internal/messaging"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/queue"
	"jobmate/apply-service/internal/ratelimit"
)

var runOpts struct {
	page      pageFlags
	auto      bool
	maxPages  int
	maxJobs   int
	burst     int
	serve     bool
	noControl bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover jobs on a results page and apply to them",
	Long: `Load a search results page, discover fast-apply jobs and apply to them
one at a time until the queue is empty or a limit is reached.

With --auto the agent keeps loading further pages while it works.
Unless --no-control is given a controller listens on APPLY_CONTROL_ADDR
for the "ctl" commands.

Examples:
  apply-agent run --url 'https://www.linkedin.com/jobs/search/?keywords=golang'
  apply-agent run --url 'https://www.naukri.com/golang-jobs' --auto --max-pages 3`,
	RunE: runAgent,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.page.url, "url", "", "search results page URL")
	f.StringVar(&runOpts.page.snapshot, "snapshot", "", "saved HTML of the page, rendered at --url")
	f.BoolVar(&runOpts.auto, "auto", false, "keep loading further pages while processing")
	f.IntVar(&runOpts.maxPages, "max-pages", 0, "auto-discovery page ceiling (default 10)")
	f.IntVar(&runOpts.maxJobs, "max-jobs", 0, "auto-discovery job ceiling (default 100)")
	f.IntVar(&runOpts.burst, "burst", 0, "use a token bucket of this capacity instead of the sliding window")
	f.BoolVar(&runOpts.serve, "serve", false, "keep the controller up after the run ends")
	f.BoolVar(&runOpts.noControl, "no-control", false, "do not start the controller")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAgent()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Redis & message channel ─────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	svc := messaging.NewClient(messaging.NewRedisBus(rdb, cfg.RequestQueue, cfg.ReplyTimeout))
	settings, err := svc.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	// ── Page, profile & adapters ─────────────────────────────────────────────
	doc, err := runOpts.page.load(ctx)
	if err != nil {
		return err
	}
	profile, err := loadProfile(ctx, cfg.ProfilePath, func(ctx context.Context) ([]byte, error) {
		return svc.GetUserProfile(ctx)
	})
	if err != nil {
		return err
	}
	factory, err := buildFactory(doc, profile, cfg.MappingsPath, settings)
	if err != nil {
		return err
	}

	// ── Queue ────────────────────────────────────────────────────────────────
	var throttle queue.Throttle = ratelimit.NewHourly(cfg.ThrottlePerHour)
	if runOpts.burst > 0 {
		throttle = ratelimit.NewTokenBucket(cfg.ThrottlePerHour, runOpts.burst)
	}
	q := queue.New(svc, settings, queue.WithLogger(logger), queue.WithThrottle(throttle))
	if err := q.Init(factory, doc.URL().String()); err != nil {
		return err
	}
	platform := q.Status().Platform

	sess, err := svc.StartSession(ctx, platform)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer func() {
		// the run context may be cancelled by now
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ReplyTimeout)
		defer cancel()
		if _, err := svc.StopSession(stopCtx); err != nil {
			logger.Warn("stop session failed", "session", sess.ID, "err", err)
		}
	}()

	detach := queue.NewEventPublisher(rdb, sess.ID).Attach(q)
	defer detach()
	q.OnJobProcessed(func(job *model.Job) { logJob(logger, job) })

	// ── Controller ───────────────────────────────────────────────────────────
	if !runOpts.noControl {
		shutdown, err := serveController(ctx, cfg.ControlAddr, q)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	// ── Run ──────────────────────────────────────────────────────────────────
	logger.Info("agent started", "platform", platform, "session", sess.ID, "url", doc.URL().String())
	if runOpts.auto {
		err = q.StartAutoDiscovery(ctx, queue.AutoOptions{MaxPages: runOpts.maxPages, MaxJobs: runOpts.maxJobs})
	} else {
		err = discoverAndProcess(ctx, q)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	summary, _ := json.MarshalIndent(q.Status(), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(summary))

	if runOpts.serve && !runOpts.noControl && ctx.Err() == nil {
		logger.Info("run finished, controller still serving; interrupt to exit")
		<-ctx.Done()
	}
	return nil
}

func discoverAndProcess(ctx context.Context, q *queue.JobQueue) error {
	n, err := q.DiscoverJobs(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Info("no jobs to apply to on this page")
		return nil
	}
	return q.StartProcessing(ctx)
}

// serveController starts the gRPC controller on addr. The returned func
// stops it and waits for runs it launched.
func serveController(ctx context.Context, addr string, q *queue.JobQueue) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("controller listen %s: %w", addr, err)
	}
	gs := grpc.NewServer()
	srv := controlrpc.NewServer(ctx, q, controlrpc.WithLogger(logger))
	controlrpc.RegisterControllerServer(gs, srv)

	go func() {
		logger.Info("controller listening", "addr", lis.Addr().String())
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("controller stopped", "err", err)
		}
	}()

	return func() {
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			gs.Stop()
		}
		q.StopProcessing()
		srv.Wait()
	}, nil
}
