package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus is the lifecycle state of a scan run. complete and failed
// are terminal; a run takes exactly one terminal transition.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

const (
	// MaxRunNotes bounds the diagnostic ring buffer.
	MaxRunNotes = 20
	// MaxNoteLength bounds each note's message and context.
	MaxNoteLength = 512
)

// RunNote is one structured diagnostic entry on a run.
type RunNote struct {
	At      time.Time `json:"at"`
	Code    string    `json:"code"`
	Message string    `json:"message,omitempty"`
	Context string    `json:"context,omitempty"`
}

// RunNotes is stored as a JSON column.
type RunNotes []RunNote

func (n RunNotes) Value() (driver.Value, error) {
	if n == nil {
		n = RunNotes{}
	}
	return json.Marshal(n)
}

func (n *RunNotes) Scan(value interface{}) error {
	if value == nil {
		*n = RunNotes{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("unsupported type for RunNotes")
		}
	}
	return json.Unmarshal(bytes, n)
}

// ScanRun tracks one execution of the scan pipeline for a user.
type ScanRun struct {
	ID                    string     `json:"id" gorm:"primaryKey"`
	UserID                string     `json:"user_id" gorm:"index;not null"`
	Status                RunStatus  `json:"status" gorm:"index"`
	TimeWindowDays        int        `json:"time_window_days"`
	TotalMessages         int        `json:"total_messages"`
	ProcessedMessages     int        `json:"processed_messages"`
	ProcessedCompanies    int        `json:"processed_companies"`
	NewslettersClassified int        `json:"newsletters_classified"`
	CostUsd               float64    `json:"cost_usd"`
	ErrorCount            int        `json:"error_count"`
	Notes                 RunNotes   `json:"notes" gorm:"type:jsonb"`
	StartedAt             time.Time  `json:"started_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
}

// TableName specifies the table name for GORM
func (ScanRun) TableName() string {
	return "scan_runs"
}

// IsTerminal reports whether the run has finished.
func (r *ScanRun) IsTerminal() bool {
	return r.Status == RunStatusComplete || r.Status == RunStatusFailed
}

// AppendNote pushes a truncated note, dropping the oldest entries once
// the buffer exceeds MaxRunNotes.
func (r *ScanRun) AppendNote(code, message, context string) {
	note := RunNote{
		At:      time.Now(),
		Code:    code,
		Message: TruncateNote(message),
		Context: TruncateNote(context),
	}
	r.Notes = append(r.Notes, note)
	for len(r.Notes) > MaxRunNotes {
		r.Notes = r.Notes[1:]
	}
	r.ErrorCount++
}

// TruncateNote caps a note field at MaxNoteLength characters. Cutting
// on runes keeps multi-byte input valid UTF-8.
func TruncateNote(value string) string {
	runes := []rune(value)
	if len(runes) <= MaxNoteLength {
		return value
	}
	return string(runes[:MaxNoteLength-3]) + "..."
}
