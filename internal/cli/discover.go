package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/queue"
)

var discoverOpts struct {
	page            pageFlags
	includeApplied  bool
	includeExternal bool
	exclude         []string
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the jobs a run would apply to, without applying",
	Long: `Load a search results page and print the jobs that pass the filter
policy. Nothing is submitted and apply-service is not contacted.

Examples:
  apply-agent discover --url 'https://in.indeed.com/jobs?q=golang'
  apply-agent discover --url 'https://www.linkedin.com/jobs/search/' --snapshot results.html --exclude senior`,
	RunE: runDiscover,
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&discoverOpts.page.url, "url", "", "search results page URL")
	f.StringVar(&discoverOpts.page.snapshot, "snapshot", "", "saved HTML of the page, rendered at --url")
	f.BoolVar(&discoverOpts.includeApplied, "include-applied", false, "keep jobs already applied to")
	f.BoolVar(&discoverOpts.includeExternal, "include-external", false, "keep jobs without fast apply")
	f.StringSliceVar(&discoverOpts.exclude, "exclude", nil, "drop jobs mentioning these keywords")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	doc, err := discoverOpts.page.load(ctx)
	if err != nil {
		return err
	}

	settings := model.DefaultSettings()
	settings.SkipAppliedJobs = !discoverOpts.includeApplied
	settings.SkipNonEasyApply = !discoverOpts.includeExternal
	settings.ExcludeKeywords = discoverOpts.exclude

	factory, err := buildFactory(doc, nil, "", settings)
	if err != nil {
		return err
	}
	q := queue.New(nil, settings, queue.WithLogger(logger))
	if err := q.Init(factory, doc.URL().String()); err != nil {
		return err
	}
	if _, err := q.DiscoverJobs(ctx); err != nil {
		return err
	}

	jobs := q.Pending()
	st := q.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d discovered, %d queued, %d skipped\n\n",
		st.Platform, st.Stats.Discovered, st.Stats.Queued, st.Stats.Skipped)
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs to apply to")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCOMPANY\tLOCATION")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", orDash(j.JobID), truncate(j.Title, 48), truncate(j.Company, 28), truncate(j.Location, 24))
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
