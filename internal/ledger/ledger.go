// Package ledger persists one durable record per attempted application.
//
// The SQLite database is the source of truth: it enforces the
// (job title, company) uniqueness contract and serves the dedup guard and
// summary queries. Every record is also mirrored to an append-only CSV
// file in the operator-facing column format, so the log stays readable
// without tooling.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one closed application attempt. Records are append-only:
// the ledger never updates a row once written.
type Record struct {
	ID       string
	JobTitle string
	Company  string
	Applied  time.Time
	Method   string
	Status   string
	FollowUp *time.Time
	Notes    string
}

// Ledger wraps the SQLite store and the CSV mirror.
type Ledger struct {
	db      *sql.DB
	mu      sync.Mutex
	csvPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS applications (
	id          TEXT PRIMARY KEY,
	job_title   TEXT NOT NULL,
	company     TEXT NOT NULL,
	applied_at  TIMESTAMP NOT NULL,
	method      TEXT NOT NULL DEFAULT 'Easy Apply',
	status      TEXT NOT NULL,
	follow_up   TIMESTAMP,
	notes       TEXT NOT NULL DEFAULT '',
	UNIQUE (job_title, company)
);
CREATE INDEX IF NOT EXISTS idx_applications_applied_at ON applications(applied_at);
`

// Open initialises the database at dbPath and the CSV mirror at csvPath.
func Open(dbPath, csvPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// Single exclusive writer; the run is single-threaded by design.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}

	l := &Ledger{db: db, csvPath: csvPath}
	if csvPath != "" {
		if err := ensureCSV(csvPath); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return l, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one closed attempt. Calling it twice for the same
// (job title, company) is a logic error the flow controller prevents via
// the dedup guard; the unique constraint surfaces it rather than
// silently fixing it.
func (l *Ledger) Record(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Method == "" {
		rec.Method = "Easy Apply"
	}
	if rec.Applied.IsZero() {
		rec.Applied = time.Now()
	}

	var followUp any
	if rec.FollowUp != nil {
		followUp = rec.FollowUp.UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO applications (id, job_title, company, applied_at, method, status, follow_up, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobTitle, rec.Company, rec.Applied.UTC(), rec.Method, rec.Status, followUp, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("record application %q @ %q: %w", rec.JobTitle, rec.Company, err)
	}

	if l.csvPath != "" {
		if err := appendCSV(l.csvPath, rec); err != nil {
			return err
		}
	}
	return nil
}

// Seen reports whether a posting with the same title and company has
// already been recorded. Drives the dedup guard at the Reviewing state.
func (l *Ledger) Seen(ctx context.Context, jobTitle, company string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM applications WHERE job_title = ? AND company = ?`,
		jobTitle, company,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return n > 0, nil
}

// Summary aggregates recorded attempts over a window.
type Summary struct {
	Since        time.Time
	Until        time.Time
	Total        int
	Responses    int
	ResponseRate float64
	FollowUpsDue int
	ByStatus     map[string]int
	OverdueJobs  []string // "title @ company" with a passed follow-up and no response
}

// responseStatuses marks externally updated statuses counted as a
// response. The engine itself only ever writes Applied/Blocked/DryRun.
var responseStatuses = []string{"response", "interview", "offer", "screen"}

func isResponse(status string) bool {
	s := strings.ToLower(status)
	for _, kw := range responseStatuses {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Summarize aggregates counts by status since the given time, computes
// the response rate over recorded attempts, and lists attempts whose
// follow-up date has passed with no recorded response.
func (l *Ledger) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT job_title, company, status, follow_up
		FROM applications
		WHERE applied_at >= ?
		ORDER BY applied_at`,
		since.UTC(),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize ledger: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	s := Summary{
		Since:    since,
		Until:    now,
		ByStatus: make(map[string]int),
	}
	for rows.Next() {
		var title, company, status string
		var followUp sql.NullTime
		if err := rows.Scan(&title, &company, &status, &followUp); err != nil {
			return Summary{}, fmt.Errorf("scan ledger row: %w", err)
		}
		s.Total++
		s.ByStatus[status]++
		if isResponse(status) {
			s.Responses++
			continue
		}
		if followUp.Valid && followUp.Time.Before(now) {
			s.FollowUpsDue++
			s.OverdueJobs = append(s.OverdueJobs, title+" @ "+company)
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate ledger rows: %w", err)
	}
	if s.Total > 0 {
		s.ResponseRate = float64(s.Responses) / float64(s.Total) * 100
	}
	return s, nil
}

// String renders the summary as the end-of-run report.
func (s Summary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 50)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "       APPLICATION SUMMARY")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "  Period        : %s to %s\n", s.Since.Format("2006-01-02"), s.Until.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Total         : %d\n", s.Total)
	fmt.Fprintf(&b, "  Responses     : %d\n", s.Responses)
	fmt.Fprintf(&b, "  Response Rate : %.1f %%\n", s.ResponseRate)
	fmt.Fprintf(&b, "  Follow-ups Due: %d\n", s.FollowUpsDue)
	if len(s.ByStatus) > 0 {
		fmt.Fprintln(&b, "\n  Breakdown by Status:")
		for _, status := range sortedKeys(s.ByStatus) {
			fmt.Fprintf(&b, "    %-25s %d\n", status, s.ByStatus[status])
		}
	}
	for _, job := range s.OverdueJobs {
		fmt.Fprintf(&b, "  Overdue follow-up: %s\n", job)
	}
	fmt.Fprintln(&b, line)
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
