package domain

import "time"

// DiagnosticStatus indicates whether a single check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one check result with an optional hint.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates the checks run by the doctor command.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// NewDiagnosticReport stamps items with the current time and derives HasFailures.
func NewDiagnosticReport(items []DiagnosticItem) DiagnosticReport {
	report := DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
	_, failed := report.Counts()
	report.HasFailures = failed > 0
	return report
}

// Counts returns how many items passed and failed.
func (r DiagnosticReport) Counts() (passed, failed int) {
	for _, item := range r.Items {
		if item.Status == DiagnosticStatusFail {
			failed++
		} else {
			passed++
		}
	}
	return passed, failed
}
