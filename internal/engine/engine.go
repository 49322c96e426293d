// Package engine drives Easy Apply attempts: it executes multi-step form
// fills against the rendering collaborator and walks each posting through
// the attempt state machine until a terminal status is reached.
//
// The engine owns no browser or storage mechanics. It consumes the
// JobSource and FormSession collaborator interfaces and writes closed
// attempts to the ledger; everything else is policy.
package engine

import (
	"context"
	"errors"

	"easyapply/internal/form"
)

// ErrSessionLost marks collaborator failures that indicate the browser
// session itself is unusable. Any error wrapping it aborts the run;
// every other collaborator failure stays local to one attempt.
var ErrSessionLost = errors.New("browser session lost")

// Posting is the external job-posting handle. Ref is an opaque handle
// owned by the job source; the engine never inspects it.
type Posting struct {
	Ref      string
	Title    string
	Company  string
	Location string
	// EasyApply reports whether the posting supports the in-page flow.
	EasyApply bool
}

// Status is the terminal state of an application attempt.
type Status string

const (
	StatusApplied Status = "Applied"
	StatusSkipped Status = "Skipped"
	StatusBlocked Status = "Blocked"
	StatusAborted Status = "Aborted"
	StatusDryRun  Status = "DryRun"
)

// StepOutcome is the per-step result of one form fill.
type StepOutcome struct {
	Attempted  int
	Resolved   int
	Unresolved []string // labels left without a value
	// Advance is true iff every required field resolved. Optional
	// fields never block advancement.
	Advance bool
}

// Attempt is one unit of work: a posting plus the outcome of every step
// taken. Never mutated after the terminal status is assigned.
type Attempt struct {
	ID      string
	Posting Posting
	Steps   []StepOutcome
	Status  Status
	Notes   string
}

// JobSource yields a lazy, finite sequence of postings, one at a time.
// ok=false signals exhaustion.
type JobSource interface {
	Next(ctx context.Context) (p Posting, ok bool, err error)
}

// FormSession is the form rendering/interaction collaborator for one
// attempt. Open prepares the multi-step form for a posting; all other
// calls address the current step. Implementations return errors
// wrapping ErrSessionLost when the underlying session is gone.
type FormSession interface {
	// Open loads the posting and opens its application form.
	Open(ctx context.Context, p Posting) error
	// Fields enumerates the raw field descriptors of the current step.
	Fields(ctx context.Context) ([]form.Descriptor, error)
	// Write enters a value into the field identified by ref.
	Write(ctx context.Context, ref, value string) error
	// Attach uploads the file at path to the field identified by ref.
	Attach(ctx context.Context, ref, path string) error
	// CanSubmit reports whether the terminal submit action is present.
	CanSubmit(ctx context.Context) (bool, error)
	// Advance requests the next step; ok=false when no advancement
	// control is available.
	Advance(ctx context.Context) (bool, error)
	// Submit performs the final, irreversible submit action.
	Submit(ctx context.Context) error
	// Discard dismisses the form without submitting.
	Discard(ctx context.Context) error
}
