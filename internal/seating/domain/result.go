package seating

import "fmt"

// RowError records why one row was not applied.
type RowError struct {
	Row             int    `json:"row"`
	Message         string `json:"message"`
	ParticipantName string `json:"participantName,omitempty"`
}

// ImportResult summarizes a batch. Success is false only for batch-level
// failures; row errors leave it true.
type ImportResult struct {
	Success            bool       `json:"success"`
	SectionsCreated    int        `json:"sectionsCreated"`
	AssignmentsCreated int        `json:"assignmentsCreated"`
	AssignmentsUpdated int        `json:"assignmentsUpdated"`
	Errors             []RowError `json:"errors"`
	Warnings           []string   `json:"warnings"`
}

// NewImportResult returns an empty successful result.
func NewImportResult() ImportResult {
	return ImportResult{Success: true, Errors: []RowError{}, Warnings: []string{}}
}

// AddError records a row failure.
func (r *ImportResult) AddError(row int, participantName string, err error) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: err.Error(), ParticipantName: participantName})
}

// AddDuplicateWarning records a row skipped because its registration already appeared.
func (r *ImportResult) AddDuplicateWarning(row int, participantName string) {
	r.Warnings = append(r.Warnings, fmt.Sprintf("Row %d: Duplicate assignment for %q - using first occurrence", row, participantName))
}

// Fail marks the batch as rejected.
func (r *ImportResult) Fail(err error) {
	r.Success = false
	r.Errors = append(r.Errors, RowError{Row: 1, Message: err.Error()})
}
