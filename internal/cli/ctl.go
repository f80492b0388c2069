package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jobmate/apply-service/internal/controlrpc"
)

var (
	ctlAddr    string
	ctlTimeout time.Duration
)

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Drive a running agent through its controller",
	Long: `Send commands to the controller of a running agent.

Examples:
  apply-agent ctl status
  apply-agent ctl pause
  apply-agent ctl watch --types job_processed,complete`,
}

// ctlCall runs fn against a connected client and prints its result.
func ctlCall(fn func(ctx context.Context, c *controlrpc.Client) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cc, err := controlrpc.Dial(ctlAddr)
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), ctlTimeout)
		defer cancel()
		out, err := fn(ctx, controlrpc.NewClient(cc))
		if err != nil {
			return describeRPCError(err)
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}

func simpleCtl(use, short string, fn func(ctx context.Context, c *controlrpc.Client) (any, error)) *cobra.Command {
	return &cobra.Command{Use: use, Short: short, Args: cobra.NoArgs, RunE: ctlCall(fn)}
}

var autoReq controlrpc.AutoDiscoverRequest

var ctlAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Start auto-discovery on the current page",
	Args:  cobra.NoArgs,
	RunE: ctlCall(func(ctx context.Context, c *controlrpc.Client) (any, error) {
		return c.AutoDiscover(ctx, &autoReq)
	}),
}

var watchTypes []string

var ctlWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream queue events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := controlrpc.Dial(ctlAddr)
		if err != nil {
			return err
		}
		defer cc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		stream, err := controlrpc.NewClient(cc).Watch(ctx, &controlrpc.WatchRequest{Types: watchTypes})
		if err != nil {
			return describeRPCError(err)
		}
		for {
			ev, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				return describeRPCError(err)
			}
			printEvent(cmd.OutOrStdout(), ev)
		}
	},
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlAddr, "addr", envOr("APPLY_CONTROL_ADDR", "127.0.0.1:7070"), "controller address")
	ctlCmd.PersistentFlags().DurationVar(&ctlTimeout, "timeout", 30*time.Second, "per-call timeout")

	ctlAutoCmd.Flags().IntVar(&autoReq.MaxPages, "max-pages", 0, "page ceiling (default 10)")
	ctlAutoCmd.Flags().IntVar(&autoReq.MaxJobs, "max-jobs", 0, "job ceiling (default 100)")
	ctlAutoCmd.Flags().Int64Var(&autoReq.PollIntervalMs, "poll-ms", 0, "top-up poll interval in ms (default 10000)")
	ctlAutoCmd.Flags().IntVar(&autoReq.LowWatermark, "low-watermark", 0, "top up at this queue size (default 5)")
	ctlWatchCmd.Flags().StringSliceVar(&watchTypes, "types", nil, "event types to stream (status, progress, job_processed, complete)")

	ctlCmd.AddCommand(
		simpleCtl("status", "Show the queue state", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Status(ctx) }),
		simpleCtl("discover", "Rediscover jobs on the current page", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Discover(ctx) }),
		simpleCtl("load-more", "Load the next page and rediscover", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.LoadMore(ctx) }),
		simpleCtl("start", "Start processing the queue", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Start(ctx) }),
		simpleCtl("pause", "Pause after the job in flight", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Pause(ctx) }),
		simpleCtl("resume", "Resume a paused run", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Resume(ctx) }),
		simpleCtl("stop", "Stop the run, keeping the queue", func(ctx context.Context, c *controlrpc.Client) (any, error) { return c.Stop(ctx) }),
		ctlAutoCmd,
		ctlWatchCmd,
	)
	rootCmd.AddCommand(ctlCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEvent(w io.Writer, ev *controlrpc.Event) {
	at := ev.At.AsTime().Local().Format("15:04:05")
	switch ev.Type {
	case controlrpc.EventJobProcessed:
		fmt.Fprintf(w, "%s  %-8s %s @ %s", at, ev.Job.Status, ev.Job.Title, ev.Job.Company)
		if ev.Job.Error != "" {
			fmt.Fprintf(w, " (%s)", ev.Job.Error)
		}
		fmt.Fprintln(w)
	case controlrpc.EventComplete:
		fmt.Fprintf(w, "%s  complete: %d processed, %d successful, %d failed\n",
			at, ev.Stats.Processed, ev.Stats.Successful, ev.Stats.Failed)
	case controlrpc.EventProgress:
		s := ev.Progress.Snapshot
		fmt.Fprintf(w, "%s  %-10s %s queued=%d processed=%d\n", at, ev.Progress.Kind, s.State, s.QueueSize, s.ProcessedSize)
	case controlrpc.EventStatus:
		fmt.Fprintf(w, "%s  status     %s queued=%d processed=%d\n", at, ev.Status.State, ev.Status.QueueSize, ev.Status.ProcessedSize)
	default:
		fmt.Fprintf(w, "%s  %s\n", at, ev.Type)
	}
}

func describeRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("no agent reachable at %s: %s", ctlAddr, st.Message())
	case codes.FailedPrecondition, codes.AlreadyExists, codes.InvalidArgument:
		return errors.New(st.Message())
	}
	return err
}
