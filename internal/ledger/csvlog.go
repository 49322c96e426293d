package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
)

// csvHeader is the operator-facing column layout. Order matters: tools
// downstream read these files positionally.
var csvHeader = []string{
	"Job Title",
	"Company",
	"Date Applied",
	"Method",
	"Status",
	"Follow-up",
	"Notes",
}

const csvTimeLayout = "2006-01-02 15:04"

// ensureCSV creates the mirror file with its header when missing.
func ensureCSV(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat csv log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create csv log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// appendCSV writes one record row to the mirror.
func appendCSV(path string, rec Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	followUp := ""
	if rec.FollowUp != nil {
		followUp = rec.FollowUp.Format("2006-01-02")
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		rec.JobTitle,
		rec.Company,
		rec.Applied.Format(csvTimeLayout),
		rec.Method,
		rec.Status,
		followUp,
		rec.Notes,
	}); err != nil {
		return fmt.Errorf("append csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
