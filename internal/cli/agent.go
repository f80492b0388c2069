package cli

import (
	"context"
	"fmt"
	"log/slog"

	"jobmate/apply-service/internal/adapter"
	"jobmate/apply-service/internal/formfill"
	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/page"
)

// pageFlags select the page the agent works on.
type pageFlags struct {
	url      string
	snapshot string
}

// load fetches the page, or reads a saved snapshot rendered at url.
func (f pageFlags) load(ctx context.Context) (*page.Document, error) {
	if f.url == "" {
		return nil, fmt.Errorf("--url is required")
	}
	if f.snapshot != "" {
		return page.LoadFile(f.snapshot, f.url)
	}
	return page.NewFetcher().Fetch(ctx, f.url)
}

// buildFactory wires the form filler and the board adapters for pg.
func buildFactory(pg page.Page, profile *formfill.Profile, mappingsPath string, settings model.Settings) (*adapter.Factory, error) {
	opts := []formfill.Option{
		formfill.WithLogger(logger),
		formfill.WithRadioFallback(settings.RadioFallback),
		formfill.WithFallbackObserver(func(ev formfill.FallbackEvent) {
			logger.Warn("radio answer matched no option",
				"label", ev.Label, "answer", ev.Answer, "policy", ev.Policy, "chosen", ev.Chosen)
		}),
	}
	if mappingsPath != "" {
		m, err := formfill.LoadMappings(mappingsPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, formfill.WithMappings(m))
	}

	return adapter.NewFactory(adapter.Deps{
		Page:    pg,
		Filler:  formfill.New(opts...),
		Profile: profile,
		Logger:  logger,
	}), nil
}

// loadProfile reads the profile file, falling back to fetch when the file
// is missing or unreadable. fetch may be nil.
func loadProfile(ctx context.Context, path string, fetch func(context.Context) ([]byte, error)) (*formfill.Profile, error) {
	p, err := formfill.LoadProfile(path)
	if err == nil {
		return p, nil
	}
	if fetch == nil {
		return nil, err
	}
	logger.Info("profile file unavailable, using the stored profile", "path", path, "err", err)
	raw, ferr := fetch(ctx)
	if ferr != nil {
		return nil, fmt.Errorf("load profile: %w", ferr)
	}
	return formfill.ParseProfile(raw)
}

func logJob(l *slog.Logger, job *model.Job) {
	args := []any{"title", job.Title, "company", job.Company, "status", job.Status}
	if job.Error != "" {
		args = append(args, "err", job.Error)
	}
	l.Info("job processed", args...)
}
