// Package formsnap snapshots the structure of online forms to JSON files and
// rebuilds forms from those snapshots.
package formsnap

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/restore"
	"github.com/Jumpaku/go-formsnap/schema"
	"github.com/Jumpaku/go-formsnap/store"
)

// ErrUsage marks invalid invocations such as a missing form ID.
var ErrUsage = errors.New("usage error")

// Source reads form structures from a form provider.
type Source interface {
	ListLinkedForms(ctx context.Context) ([]schema.FormRef, error)
	FetchSchema(ctx context.Context, formID string) (schema.Schema, error)
}

// Deps are the collaborators of an App. Source and Mutator may be nil when the
// commands that need them are not used.
type Deps struct {
	Source  Source
	Store   *store.Store
	Mutator restore.Mutator
	Logger  logger.Logger
}

type App struct {
	cfg     Config
	source  Source
	store   *store.Store
	mutator restore.Mutator
	log     logger.Logger
}

func New(cfg Config, deps Deps) *App {
	log := deps.Logger
	if log == nil {
		log = logger.NOP
	}
	return &App{
		cfg:     cfg,
		source:  deps.Source,
		store:   deps.Store,
		mutator: deps.Mutator,
		log:     log,
	}
}

// List returns the forms linked to the spreadsheet.
func (a *App) List(ctx context.Context) ([]schema.FormRef, error) {
	if a.source == nil {
		return nil, fmt.Errorf("no form source configured: %w", errors.ErrUnsupported)
	}
	return a.source.ListLinkedForms(ctx)
}

type FetchRequest struct {
	FormID string
	// DateStamp is YYMMDD. Empty means today.
	DateStamp string
	Prefix    string
	// Output overrides the generated snapshot path.
	Output string
}

type FetchResult struct {
	Path   string
	Schema schema.Schema
	Put    store.PutResult
}

// Fetch reads one form structure and stores it as a snapshot. Nothing is
// written when the fetch fails.
func (a *App) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	formID := req.FormID
	if formID == "" {
		formID = a.cfg.FormID
	}
	if formID == "" {
		return FetchResult{}, usageErrorf("no form ID given")
	}
	if req.DateStamp != "" {
		if _, err := time.Parse(store.DateStampLayout, req.DateStamp); err != nil {
			return FetchResult{}, usageErrorf("date %q is not YYMMDD", req.DateStamp)
		}
	}
	if a.source == nil {
		return FetchResult{}, fmt.Errorf("no form source configured: %w", errors.ErrUnsupported)
	}

	log := a.log.Withn(logger.NewStringField("formId", formID))
	s, err := a.source.FetchSchema(ctx, formID)
	if err != nil {
		log.Errorn("fetch failed", logger.NewErrorField(err))
		return FetchResult{}, err
	}

	p := req.Output
	if p == "" {
		prefix := req.Prefix
		if prefix == "" {
			prefix = a.cfg.Prefix
		}
		p = a.store.NameFor(prefix, req.DateStamp)
	}
	put, err := a.store.Put(ctx, p, s)
	if err != nil {
		log.Errorn("snapshot not saved", logger.NewStringField("path", p), logger.NewErrorField(err))
		return FetchResult{}, err
	}
	return FetchResult{Path: p, Schema: schema.Normalize(s), Put: put}, nil
}

// Inspect loads a snapshot without contacting any provider.
func (a *App) Inspect(ctx context.Context, path string) (schema.Schema, error) {
	return a.store.Get(ctx, path)
}

type RestoreRequest struct {
	Path         string
	TargetFormID string
	// Policy is "overwrite" or "append". Empty uses the configured policy.
	Policy string
}

// Restore rebuilds the snapshot at req.Path into a form. Failed items are
// reported, not returned as an error.
func (a *App) Restore(ctx context.Context, req RestoreRequest) (restore.Report, error) {
	policy := req.Policy
	if policy == "" {
		policy = a.cfg.Policy
	}
	p, err := restore.ParsePolicy(policy)
	if err != nil {
		return restore.Report{}, usageErrorf("%v", err)
	}
	if a.mutator == nil {
		return restore.Report{}, fmt.Errorf("no form mutator configured: %w", errors.ErrUnsupported)
	}

	s, err := a.store.Get(ctx, req.Path)
	if err != nil {
		return restore.Report{}, err
	}

	interval := a.cfg.RetryInterval
	engine := restore.New(a.mutator,
		restore.WithMaxRetries(a.cfg.MaxRetries),
		restore.WithBackOff(func() backoff.BackOff {
			if interval <= 0 {
				return &backoff.ZeroBackOff{}
			}
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(interval))
		}),
		restore.WithLogger(a.log.Child("restore")),
	)
	a.log.Infon("restoring snapshot",
		logger.NewStringField("path", req.Path),
		logger.NewStringField("target", req.TargetFormID),
		logger.NewStringField("policy", string(p)),
	)
	return engine.Restore(ctx, s, restore.Target{FormID: req.TargetFormID, Policy: p})
}

// Snapshots lists stored snapshots whose names start with prefix.
func (a *App) Snapshots(ctx context.Context, prefix string) ([]store.Entry, error) {
	return a.store.List(ctx, prefix)
}

// ExitCode maps the result of a command to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}
