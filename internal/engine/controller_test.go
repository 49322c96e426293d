package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"easyapply/internal/answer"
	"easyapply/internal/config"
	"easyapply/internal/form"
	"easyapply/internal/ledger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource yields a fixed slice of postings.
type fakeSource struct {
	postings []Posting
	i        int
	err      error // returned once the slice is exhausted
}

func (s *fakeSource) Next(_ context.Context) (Posting, bool, error) {
	if s.i >= len(s.postings) {
		return Posting{}, false, s.err
	}
	p := s.postings[s.i]
	s.i++
	return p, true, nil
}

// fakeForms serves a scripted multi-step form. The same script replays
// for every opened posting.
type fakeForms struct {
	steps [][]form.Descriptor
	step  int

	openErr  error
	writeErr map[string]error // one-shot per-ref failures
	endless  bool             // advance forever, never offer submit

	opened   []string
	writes   map[string]string
	attaches map[string]string
	submits  int
	discards int
}

func newFakeForms(steps ...[]form.Descriptor) *fakeForms {
	return &fakeForms{
		steps:    steps,
		writes:   make(map[string]string),
		attaches: make(map[string]string),
	}
}

func (f *fakeForms) Open(_ context.Context, p Posting) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, p.Ref)
	f.step = 0
	return nil
}

func (f *fakeForms) Fields(_ context.Context) ([]form.Descriptor, error) {
	return f.steps[f.step], nil
}

func (f *fakeForms) Write(_ context.Context, ref, value string) error {
	if err, ok := f.writeErr[ref]; ok {
		delete(f.writeErr, ref)
		return err
	}
	f.writes[ref] = value
	return nil
}

func (f *fakeForms) Attach(_ context.Context, ref, path string) error {
	f.attaches[ref] = path
	return nil
}

func (f *fakeForms) CanSubmit(_ context.Context) (bool, error) {
	if f.endless {
		return false, nil
	}
	return f.step == len(f.steps)-1, nil
}

func (f *fakeForms) Advance(_ context.Context) (bool, error) {
	if f.endless {
		return true, nil
	}
	if f.step >= len(f.steps)-1 {
		return false, nil
	}
	f.step++
	return true, nil
}

func (f *fakeForms) Submit(_ context.Context) error {
	f.submits++
	return nil
}

func (f *fakeForms) Discard(_ context.Context) error {
	f.discards++
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Personal.FirstName = "Ada"
	cfg.Personal.LastName = "Verma"
	cfg.Personal.Email = "ada@example.com"
	cfg.Personal.Phone = "+91 99999 00000"
	cfg.Documents.CVPath = "/docs/cv.pdf"
	cfg.Background.YearsOfExperience = 4
	return cfg
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "applications.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newTestController(t *testing.T, cfg *config.Config, source JobSource, forms FormSession, led *ledger.Ledger, dryRun bool) *Controller {
	t.Helper()
	log := zap.NewNop()
	exec := NewStepExecutor(answer.NewResolver(cfg), forms, log)
	return NewController(cfg, source, forms, led, exec, log, dryRun)
}

func easyPosting(ref, title, company string) Posting {
	return Posting{Ref: ref, Title: title, Company: company, EasyApply: true}
}

// resolvableSteps is a two-step form the default test config can answer
// completely.
func resolvableSteps() [][]form.Descriptor {
	return [][]form.Descriptor{
		{
			{Ref: "q1", Type: "text", Label: "First name", Required: true},
			{Ref: "q2", Type: "text", Label: "Are you legally authorized to work in this country?", Required: true},
		},
		{
			{Ref: "q3", Type: "number", Label: "Years of experience", Required: true},
			{Ref: "q4", Type: "file", Label: "Upload your resume", Required: true},
		},
	}
}

func TestRunAppliesAndRecords(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Counts[StatusApplied])
	assert.Equal(t, 1, forms.submits)
	assert.Zero(t, forms.discards)
	assert.Equal(t, "Ada", forms.writes["q1"])
	assert.Equal(t, "Yes", forms.writes["q2"])
	assert.Equal(t, "4", forms.writes["q3"])
	assert.Equal(t, "/docs/cv.pdf", forms.attaches["q4"])

	seen, err := led.Seen(context.Background(), "SRE", "Acme")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRunDryRunNeverSubmits(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, true)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Submitted, "dry-run attempts count against the cap")
	assert.Equal(t, 1, report.Counts[StatusDryRun])
	assert.Zero(t, forms.submits, "dry run must never reach the submit action")
	assert.Equal(t, 1, forms.discards)
	assert.Equal(t, "Ada", forms.writes["q1"], "dry run still fills every step")

	seen, err := led.Seen(context.Background(), "SRE", "Acme")
	require.NoError(t, err)
	assert.True(t, seen, "dry-run attempts are recorded")
}

func TestRunEnforcesApplicationCap(t *testing.T) {
	cfg := testConfig()
	cfg.Search.MaxApplications = 2

	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{
		easyPosting("p1", "SRE", "Acme"),
		easyPosting("p2", "SRE", "Globex"),
		easyPosting("p3", "SRE", "Initech"),
		easyPosting("p4", "SRE", "Hooli"),
	}}
	c := newTestController(t, cfg, source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Submitted)
	assert.Len(t, forms.opened, 2, "postings past the cap are never opened")
}

func TestRunSkipsNonEasyApply(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{
		{Ref: "p1", Title: "SRE", Company: "Acme", EasyApply: false},
		easyPosting("p2", "SRE", "Globex"),
	}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts[StatusSkipped])
	assert.Equal(t, 1, report.Counts[StatusApplied])
	assert.Equal(t, []string{"p2"}, forms.opened)

	// A skip writes nothing, so a later run can retry the posting.
	seen, err := led.Seen(context.Background(), "SRE", "Acme")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRunDedupAcrossRuns(t *testing.T) {
	led := openTestLedger(t)
	cfg := testConfig()
	posting := easyPosting("p1", "SRE", "Acme")

	first := newTestController(t, cfg, &fakeSource{postings: []Posting{posting}},
		newFakeForms(resolvableSteps()...), led, false)
	report, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Counts[StatusApplied])

	forms := newFakeForms(resolvableSteps()...)
	second := newTestController(t, cfg, &fakeSource{postings: []Posting{posting}}, forms, led, false)
	report, err = second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts[StatusSkipped])
	assert.Zero(t, report.Submitted)
	assert.Empty(t, forms.opened, "recorded postings are skipped before the form opens")
}

func TestRunBlocksOnRequiredUnresolved(t *testing.T) {
	forms := newFakeForms([]form.Descriptor{
		{Ref: "q1", Type: "text", Label: "Favorite dinosaur", Required: true},
	})
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts[StatusBlocked])
	assert.Zero(t, report.Submitted)
	assert.Zero(t, forms.submits)
	assert.Equal(t, 1, forms.discards, "blocked drafts are discarded")

	// Blocked attempts are recorded: the posting is not retried.
	seen, err := led.Seen(context.Background(), "SRE", "Acme")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRunOptionalUnresolvedStillApplies(t *testing.T) {
	forms := newFakeForms([]form.Descriptor{
		{Ref: "q1", Type: "text", Label: "First name", Required: true},
		{Ref: "q2", Type: "text", Label: "Favorite dinosaur", Required: false},
	})
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts[StatusApplied])
}

func TestRunAbortsOnSessionLoss(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	forms.writeErr = map[string]error{"q2": ErrSessionLost}
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{
		easyPosting("p1", "SRE", "Acme"),
		easyPosting("p2", "SRE", "Globex"),
	}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrSessionLost)

	assert.Equal(t, 1, report.Counts[StatusAborted])
	assert.Len(t, forms.opened, 1, "the run ends with the aborted attempt")
}

func TestRunAttemptLocalWriteFailure(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	forms.writeErr = map[string]error{"q2": errors.New("element went stale")}
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{
		easyPosting("p1", "SRE", "Acme"),
		easyPosting("p2", "SRE", "Globex"),
	}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err, "attempt-local failures never abort the run")

	assert.Equal(t, 1, report.Counts[StatusBlocked], "failed required write blocks the attempt")
	assert.Equal(t, 1, report.Counts[StatusApplied], "the next posting still runs")
}

func TestRunStepLimit(t *testing.T) {
	forms := newFakeForms([]form.Descriptor{
		{Ref: "q1", Type: "text", Label: "First name", Required: true},
	})
	forms.endless = true
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts[StatusBlocked])
	assert.Equal(t, 1, forms.discards)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Run(ctx)
	require.NoError(t, err, "cancellation is a cooperative stop, not an error")
	assert.Empty(t, forms.opened)
	assert.Zero(t, report.Submitted)
}

func TestRunLedgerFailureCountsAsAborted(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	led := openTestLedger(t)
	require.NoError(t, led.Close())

	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger")
	assert.Equal(t, 1, report.Counts[StatusAborted])
	assert.Empty(t, forms.opened, "the dedup check fails before the form opens")
}

func TestRunSkipsWhenFormFailsToOpen(t *testing.T) {
	forms := newFakeForms(resolvableSteps()...)
	forms.openErr = errors.New("no easy apply button")
	led := openTestLedger(t)
	source := &fakeSource{postings: []Posting{easyPosting("p1", "SRE", "Acme")}}
	c := newTestController(t, testConfig(), source, forms, led, false)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Counts[StatusSkipped])
	seen, err := led.Seen(context.Background(), "SRE", "Acme")
	require.NoError(t, err)
	assert.False(t, seen, "open failures stay unrecorded for retry")
}

func TestStepExecutorCountsPrefilled(t *testing.T) {
	forms := newFakeForms(nil)
	log := zap.NewNop()
	exec := NewStepExecutor(answer.NewResolver(testConfig()), forms, log)

	out, err := exec.Execute(context.Background(), []form.Descriptor{
		{Ref: "q1", Type: "text", Label: "First name", Required: true, Value: "Already Filled"},
		{Ref: "q2", Type: "text", Label: "Email address", Required: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Attempted)
	assert.Equal(t, 2, out.Resolved)
	assert.True(t, out.Advance)
	_, wrote := forms.writes["q1"]
	assert.False(t, wrote, "pre-filled fields are never overwritten")
	assert.Equal(t, "ada@example.com", forms.writes["q2"])
}
