// Package restore rebuilds a form from a schema snapshot through a Mutator.
package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/spf13/cast"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/schema"
)

const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond

	metadataDescription = "description"
)

// FormInfo is the form-level content written to a target.
type FormInfo struct {
	Title       string
	Description string
}

// Mutator performs the remote operations a restore needs. Locations are
// zero-based item positions in the target form. CreateForm returns the ID of
// a form it created even when it fails afterwards.
type Mutator interface {
	CreateForm(ctx context.Context, info FormInfo) (formID string, err error)
	UpdateInfo(ctx context.Context, formID string, info FormInfo) error
	ItemCount(ctx context.Context, formID string) (int, error)
	ClearItems(ctx context.Context, formID string) error
	AddItem(ctx context.Context, formID string, location int, item schema.Item) error
	SetChoices(ctx context.Context, formID string, location int, choices []string) error
}

// Policy decides what happens to the items of an existing target form.
type Policy string

const (
	// PolicyOverwrite replaces the form info and removes existing items.
	PolicyOverwrite Policy = "overwrite"
	// PolicyAppend adds the restored items after the existing ones.
	PolicyAppend Policy = "append"
)

// ParsePolicy accepts "", "overwrite" and "append".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyAppend:
		return PolicyAppend, nil
	}
	return "", fmt.Errorf("unknown restore policy %q: %w", s, errors.ErrInvalidTarget)
}

// Target selects the form to restore into. An empty FormID creates a new form.
type Target struct {
	FormID string
	Policy Policy
}

type Engine struct {
	mutator    Mutator
	maxRetries int
	newBackOff func() backoff.BackOff
	log        logger.Logger
}

type Option func(*Engine)

// WithMaxRetries sets how many times a transient failure is retried per step.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithBackOff sets the wait policy between retries. A new BackOff is requested
// for every step.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(e *Engine) { e.newBackOff = newBackOff }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(mutator Mutator, opts ...Option) *Engine {
	e := &Engine{
		mutator:    mutator,
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(DefaultInitialInterval))
		},
		log: logger.NOP,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	return e
}

// Restore reproduces s in the target form. Item failures are collected in the
// report and do not stop the run. An error is returned when the target cannot
// be resolved, or together with the partial report when ctx is cancelled. A
// form created before the failure is named in the report returned with the
// error.
func (e *Engine) Restore(ctx context.Context, s schema.Schema, target Target) (report Report, err error) {
	s = schema.Normalize(s)
	if target.FormID != "" && target.FormID == s.FormID {
		return Report{}, fmt.Errorf("target %q is the snapshot's source form: %w", target.FormID, errors.ErrInvalidTarget)
	}
	policy, err := ParsePolicy(string(target.Policy))
	if err != nil {
		return Report{}, err
	}

	log := e.log.Withn(logger.NewStringField("title", s.Title))
	info := FormInfo{Title: s.Title, Description: cast.ToString(s.Metadata[metadataDescription])}

	offset := 0
	if target.FormID == "" {
		if err := e.createForm(ctx, &report, info); err != nil {
			if report.Created {
				log.Errorn("target form created but not initialized",
					logger.NewStringField("formId", report.TargetFormID),
					logger.NewErrorField(err),
				)
				return report, fmt.Errorf("target form %q created but its info was not written: %w", report.TargetFormID, err)
			}
			return Report{}, fmt.Errorf("failed to create target form: %w", err)
		}
		report.Created = true
		log.Infon("target form created", logger.NewStringField("formId", report.TargetFormID))
	} else {
		report.TargetFormID = target.FormID
		switch policy {
		case PolicyOverwrite:
			err = e.retry(ctx, "update form info", func() error {
				return e.mutator.UpdateInfo(ctx, target.FormID, info)
			})
			if err == nil {
				err = e.retry(ctx, "clear items", func() error {
					return e.mutator.ClearItems(ctx, target.FormID)
				})
			}
		case PolicyAppend:
			err = e.retry(ctx, "count items", func() error {
				n, err := e.mutator.ItemCount(ctx, target.FormID)
				offset = n
				return err
			})
		}
		if err != nil {
			return Report{}, fmt.Errorf("failed to prepare target form %q: %w", target.FormID, err)
		}
	}
	log = log.Withn(logger.NewStringField("formId", report.TargetFormID))

	placed := 0
	for _, item := range s.Items {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		ok, reached, err := e.restoreItem(ctx, &report, report.TargetFormID, offset+placed, item)
		if reached {
			placed++
		}
		if ctx.Err() != nil && err != nil {
			report.Interrupted = true
			break
		}
		switch {
		case err != nil:
			itemErr := &errors.RestoreItemError{Index: item.Index, Cause: err}
			report.Failed = append(report.Failed, ItemFailure{Index: item.Index, Title: item.Title, Err: itemErr})
			log.Warnn("item not restored",
				logger.NewIntField("index", int64(item.Index)),
				logger.NewStringField("type", string(item.Type)),
				logger.NewErrorField(err),
			)
		case ok:
			report.Succeeded = append(report.Succeeded, item.Index)
		default:
			report.Skipped = append(report.Skipped, item.Index)
		}
	}

	if report.Interrupted {
		log.Warnn("restore interrupted", logger.NewIntField("processed", int64(len(report.Succeeded)+len(report.Failed)+len(report.Skipped))))
		return report, ctx.Err()
	}
	log.Infon("restore finished",
		logger.NewIntField("succeeded", int64(len(report.Succeeded))),
		logger.NewIntField("failed", int64(len(report.Failed))),
		logger.NewIntField("skipped", int64(len(report.Skipped))),
	)
	return report, nil
}

// restoreItem applies the transition for one item. ok is false for skipped
// items; reached is true when the item exists in the target afterwards.
func (e *Engine) restoreItem(ctx context.Context, report *Report, formID string, location int, item schema.Item) (ok, reached bool, err error) {
	if item.Type == schema.ItemTypeUnknown {
		report.warnf("item %d %q skipped: unsupported type %s", item.Index, item.Title, item.OriginalType())
		return false, false, nil
	}

	add := item
	if add.Type.IsStructural() {
		add.Required = false
	}
	add.Choices = nil
	err = e.retry(ctx, "add item", func() error {
		return e.mutator.AddItem(ctx, formID, location, add)
	})
	if err != nil {
		return false, false, err
	}
	if !item.Type.HasChoices() {
		return true, true, nil
	}

	if len(item.Choices) == 0 {
		report.warnf("item %d %q has no choices", item.Index, item.Title)
		return true, true, nil
	}
	err = e.retry(ctx, "set choices", func() error {
		return e.mutator.SetChoices(ctx, formID, location, item.Choices)
	})
	if err != nil {
		return false, true, err
	}
	return true, true, nil
}

// createForm creates the target form at most once. When CreateForm returns a
// form ID together with an error, the form exists but its info may be
// incomplete, so the info is written with UpdateInfo instead of creating the
// form again.
func (e *Engine) createForm(ctx context.Context, report *Report, info FormInfo) error {
	err := e.retry(ctx, "create form", func() error {
		formID, err := e.mutator.CreateForm(ctx, info)
		if formID == "" {
			return err
		}
		report.TargetFormID = formID
		report.Created = true
		return backoff.Permanent(err)
	})
	if err == nil || !report.Created {
		return err
	}
	e.log.Warnn("form created without its info",
		logger.NewStringField("formId", report.TargetFormID),
		logger.NewErrorField(err),
	)
	return e.retry(ctx, "update form info", func() error {
		return e.mutator.UpdateInfo(ctx, report.TargetFormID, info)
	})
}

// retry runs op until it succeeds, fails with an error other than
// ErrRemoteUnavailable, returns a backoff.Permanent error, or the retry budget
// is spent.
func (e *Engine) retry(ctx context.Context, step string, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(e.maxRetries)), ctx)
	operation := func() error {
		err := op()
		if err != nil && !errors.Is(err, errors.ErrRemoteUnavailable) && !errors.Is(err, &backoff.PermanentError{}) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(operation, b, func(err error, d time.Duration) {
		e.log.Warnn("retrying "+step,
			logger.NewDurationField("backoff", d),
			logger.NewErrorField(err),
		)
	})
}
