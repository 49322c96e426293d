package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"easyapply/internal/config"
	"easyapply/internal/ledger"
)

// maxStepsPerAttempt guards against forms that never reach a terminal
// submit action.
const maxStepsPerAttempt = 15

// Controller walks postings from the job source through the attempt
// state machine: Reviewing -> InStep(n) -> {Applied, Blocked, DryRun},
// with Skipped decided at the Reviewing guard and Aborted reserved for
// session-level failures. One posting is processed start to finish
// before the next begins; the browser session is a single exclusively
// owned resource.
type Controller struct {
	cfg    *config.Config
	source JobSource
	forms  FormSession
	ledger *ledger.Ledger
	exec   *StepExecutor
	log    *zap.Logger
	dryRun bool
}

// RunReport is the final tally of a run.
type RunReport struct {
	// Submitted counts attempts reaching Applied or DryRun; compared
	// against search.max_applications.
	Submitted int
	Counts    map[Status]int
}

// NewController wires the flow controller. dryRun suppresses only the
// final submit action; every other side effect runs identically.
func NewController(cfg *config.Config, source JobSource, forms FormSession, led *ledger.Ledger, exec *StepExecutor, log *zap.Logger, dryRun bool) *Controller {
	return &Controller{
		cfg:    cfg,
		source: source,
		forms:  forms,
		ledger: led,
		exec:   exec,
		log:    log,
		dryRun: dryRun,
	}
}

// Run processes postings until the source is exhausted, the session cap
// is reached, the context is cancelled, or the session is lost. Only
// the last case returns an error; cancellation is a cooperative stop
// checked between postings, never mid-step.
func (c *Controller) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{Counts: make(map[Status]int)}
	maxApplications := c.cfg.Search.MaxApplications

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stop requested, ending run between postings")
			return report, nil
		default:
		}

		if maxApplications > 0 && report.Submitted >= maxApplications {
			c.log.Info("application cap reached", zap.Int("max_applications", maxApplications))
			return report, nil
		}

		posting, ok, err := c.source.Next(ctx)
		if err != nil {
			report.Counts[StatusAborted]++
			return report, fmt.Errorf("job source: %w", err)
		}
		if !ok {
			c.log.Info("job source exhausted")
			return report, nil
		}

		// Reviewing guards: skips create no attempt and write nothing.
		if c.cfg.Search.EasyApplyOnly && !posting.EasyApply {
			c.log.Info("skipping posting without easy apply",
				zap.String("title", posting.Title), zap.String("company", posting.Company))
			report.Counts[StatusSkipped]++
			continue
		}
		seen, err := c.ledger.Seen(ctx, posting.Title, posting.Company)
		if err != nil {
			report.Counts[StatusAborted]++
			return report, fmt.Errorf("ledger: %w", err)
		}
		if seen {
			c.log.Info("skipping already recorded posting",
				zap.String("title", posting.Title), zap.String("company", posting.Company))
			report.Counts[StatusSkipped]++
			continue
		}

		attempt := &Attempt{ID: uuid.NewString(), Posting: posting}
		c.processAttempt(ctx, attempt)
		report.Counts[attempt.Status]++

		c.log.Info("attempt finished",
			zap.String("title", posting.Title),
			zap.String("company", posting.Company),
			zap.String("status", string(attempt.Status)),
			zap.Int("steps", len(attempt.Steps)))

		switch attempt.Status {
		case StatusApplied, StatusDryRun:
			report.Submitted++
			if err := c.record(ctx, attempt); err != nil {
				return report, err
			}
		case StatusBlocked:
			if err := c.record(ctx, attempt); err != nil {
				return report, err
			}
		case StatusAborted:
			if err := c.record(ctx, attempt); err != nil {
				c.log.Error("recording aborted attempt failed", zap.Error(err))
			}
			return report, fmt.Errorf("attempt %s @ %s: %w", posting.Title, posting.Company, ErrSessionLost)
		case StatusSkipped:
			// Form never opened: leave it unrecorded so a later run
			// can retry the posting.
		}
	}
}

// processAttempt drives one posting to a terminal status.
func (c *Controller) processAttempt(ctx context.Context, attempt *Attempt) {
	if err := c.forms.Open(ctx, attempt.Posting); err != nil {
		if errors.Is(err, ErrSessionLost) {
			attempt.Status = StatusAborted
			attempt.Notes = "session lost opening application"
			return
		}
		c.log.Info("application form did not open",
			zap.String("title", attempt.Posting.Title), zap.Error(err))
		attempt.Status = StatusSkipped
		return
	}

	for step := 1; step <= maxStepsPerAttempt; step++ {
		descriptors, err := c.forms.Fields(ctx)
		if err != nil {
			c.closeWith(ctx, attempt, err, "enumerating step fields failed")
			return
		}

		out, err := c.exec.Execute(ctx, descriptors)
		attempt.Steps = append(attempt.Steps, out)
		if err != nil {
			c.closeWith(ctx, attempt, err, "session lost during step")
			return
		}
		if !out.Advance {
			c.discard(ctx)
			attempt.Status = StatusBlocked
			attempt.Notes = "required fields unresolved: " + strings.Join(out.Unresolved, "; ")
			return
		}

		canSubmit, err := c.forms.CanSubmit(ctx)
		if err != nil {
			c.closeWith(ctx, attempt, err, "submit detection failed")
			return
		}
		if canSubmit {
			if c.dryRun {
				// Exercise everything except the irreversible action.
				c.discard(ctx)
				attempt.Status = StatusDryRun
				return
			}
			if err := c.forms.Submit(ctx); err != nil {
				c.closeWith(ctx, attempt, err, "submit failed")
				return
			}
			attempt.Status = StatusApplied
			return
		}

		advanced, err := c.forms.Advance(ctx)
		if err != nil {
			c.closeWith(ctx, attempt, err, "advancing form failed")
			return
		}
		if !advanced {
			c.discard(ctx)
			attempt.Status = StatusBlocked
			attempt.Notes = "could not advance the form"
			return
		}
	}

	c.discard(ctx)
	attempt.Status = StatusBlocked
	attempt.Notes = fmt.Sprintf("no terminal submit action within %d steps", maxStepsPerAttempt)
}

// closeWith maps a collaborator failure to Aborted (session gone) or
// Blocked (attempt-local), discarding the draft in the latter case.
func (c *Controller) closeWith(ctx context.Context, attempt *Attempt, err error, note string) {
	if errors.Is(err, ErrSessionLost) {
		attempt.Status = StatusAborted
		attempt.Notes = note + ": " + err.Error()
		return
	}
	c.discard(ctx)
	attempt.Status = StatusBlocked
	attempt.Notes = note + ": " + err.Error()
}

func (c *Controller) discard(ctx context.Context) {
	if err := c.forms.Discard(ctx); err != nil {
		c.log.Warn("discarding application draft failed", zap.Error(err))
	}
}

func (c *Controller) record(ctx context.Context, attempt *Attempt) error {
	return c.ledger.Record(ctx, ledger.Record{
		ID:       attempt.ID,
		JobTitle: attempt.Posting.Title,
		Company:  attempt.Posting.Company,
		Applied:  time.Now(),
		Status:   string(attempt.Status),
		Notes:    attempt.Notes,
	})
}
