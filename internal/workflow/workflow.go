// Package workflow tracks remote asynchronous mutations until they settle.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/ctxlog"

	"github.com/go-ports/terminus/internal/config"
	"github.com/go-ports/terminus/internal/models"
)

var (
	// ErrTimeout is wrapped by TimeoutError.
	ErrTimeout = errors.New("workflow did not settle in time")
	// ErrFailed is wrapped by FailedError.
	ErrFailed = errors.New("workflow failed")

	errPending = errors.New("workflow pending")
)

// TimeoutError reports that polling exceeded the configured bound. The remote
// operation may still complete; Wait can be called again to resume polling.
type TimeoutError struct {
	ID      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workflow %s: %v after %s", e.ID, ErrTimeout, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// FailedError reports a workflow that reached the failed state. The remote
// system has already acted on the request.
type FailedError struct {
	ID     string
	Reason string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("workflow %s: %v", e.ID, ErrFailed)
	}
	return fmt.Sprintf("workflow %s: %v: %s", e.ID, ErrFailed, e.Reason)
}

func (e *FailedError) Unwrap() error { return ErrFailed }

// StatusFetcher reads the current state of a workflow.
type StatusFetcher interface {
	WorkflowStatus(ctx context.Context, path string) (json.RawMessage, error)
}

// Options bounds polling.
type Options struct {
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	Timeout         time.Duration
}

// OptionsFrom converts the workflow section of the configuration.
func OptionsFrom(cfg config.WorkflowConfig) Options {
	return Options{
		PollInterval:    cfg.PollInterval,
		MaxPollInterval: cfg.MaxPollInterval,
		Timeout:         cfg.Timeout,
	}
}

// Workflow is a handle on one remote mutation.
type Workflow struct {
	path    string
	fetcher StatusFetcher
	opts    Options

	state   models.WorkflowState
	history []models.WorkflowStatus
	settled bool
	err     error
}

// New parses the handle returned by a mutation. ownerPath is the listing root
// of the workflow's owner, e.g. "organizations/<id>".
func New(ownerPath string, handle json.RawMessage, fetcher StatusFetcher, opts Options) (*Workflow, error) {
	state, err := models.ParseWorkflow(handle)
	if err != nil {
		return nil, fmt.Errorf("workflow.New: %w", err)
	}
	w := &Workflow{
		path:    strings.TrimRight(ownerPath, "/") + "/workflows/" + state.ID,
		fetcher: fetcher,
		opts:    opts,
	}
	w.observe(state)
	return w, nil
}

// ID returns the remote workflow ID.
func (w *Workflow) ID() string { return w.state.ID }

// State returns the most recent observation.
func (w *Workflow) State() models.WorkflowState { return w.state }

// History returns the distinct statuses observed, in order.
func (w *Workflow) History() []models.WorkflowStatus {
	return append([]models.WorkflowStatus(nil), w.history...)
}

// Settled reports whether a terminal status has been observed.
func (w *Workflow) Settled() bool { return w.settled }

func (w *Workflow) observe(state models.WorkflowState) {
	w.state = state
	if n := len(w.history); n == 0 || w.history[n-1] != state.Status {
		w.history = append(w.history, state.Status)
	}
	if !state.Status.Terminal() {
		return
	}
	w.settled = true
	if state.Status == models.WorkflowFailed {
		w.err = &FailedError{ID: state.ID, Reason: state.Reason}
	}
}

// Wait blocks until the workflow reaches a terminal status and returns it.
// A failed workflow returns its state together with a *FailedError. Once
// settled, Wait returns the stored result without polling.
//
// Polls back off exponentially from PollInterval to MaxPollInterval. After
// Timeout, Wait returns a *TimeoutError; transport errors end polling
// immediately and are never retried.
func (w *Workflow) Wait(ctx context.Context) (models.WorkflowState, error) {
	if w.settled {
		return w.state, w.err
	}

	logger := ctxlog.From(ctx)
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.PollInterval
	b.MaxInterval = w.opts.MaxPollInterval
	b.MaxElapsedTime = 0
	b.Reset()

	op := func() error {
		raw, err := w.fetcher.WorkflowStatus(pollCtx, w.path)
		if err != nil {
			return backoff.Permanent(err)
		}
		state, err := models.ParseWorkflow(raw)
		if err != nil {
			return backoff.Permanent(err)
		}
		w.observe(state)
		logger.Debug("workflow polled", "id", state.ID, "status", state.Status)
		if !w.settled {
			return errPending
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(b, pollCtx))
	if err == nil {
		logger.Debug("workflow settled", "id", w.state.ID, "status", w.state.Status, "elapsed", time.Since(start))
		return w.state, w.err
	}
	if ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
		return w.state, &TimeoutError{ID: w.state.ID, Elapsed: time.Since(start)}
	}
	return w.state, fmt.Errorf("workflow.Wait: %s: %w", w.state.ID, err)
}
