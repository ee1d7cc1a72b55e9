package dto

import "time"

// StartScanRequest carries optional overrides for a new scan
type StartScanRequest struct {
	TimeWindowDays *int `json:"timeWindowDays,omitempty"`
}

// StartScanResponse returns the identifier of the created run
type StartScanResponse struct {
	RunID string `json:"runId"`
}

// RunNoteResponse is a single diagnostic entry on a run
type RunNoteResponse struct {
	At      time.Time `json:"at"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Context string    `json:"context,omitempty"`
}

// ProgressResponse reports live counters for a run
type ProgressResponse struct {
	RunID                 string            `json:"runId"`
	Status                string            `json:"status"`
	TotalMessages         int               `json:"totalMessages"`
	ProcessedMessages     int               `json:"processedMessages"`
	NewslettersClassified int               `json:"newslettersClassified"`
	ProcessedCompanies    int               `json:"processedCompanies"`
	ErrorCount            int               `json:"errorCount"`
	EstimatedCostUSD      float64           `json:"estimatedCostUsd"`
	Notes                 []RunNoteResponse `json:"notes"`
	FailureReason         string            `json:"failureReason,omitempty"`
	StartedAt             time.Time         `json:"startedAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
	CompletedAt           *time.Time        `json:"completedAt,omitempty"`
}

// RunSummaryResponse is a single row in the run history listing
type RunSummaryResponse struct {
	RunID              string     `json:"runId"`
	Status             string     `json:"status"`
	ProcessedMessages  int        `json:"processedMessages"`
	ProcessedCompanies int        `json:"processedCompanies"`
	ErrorCount         int        `json:"errorCount"`
	EstimatedCostUSD   float64    `json:"estimatedCostUsd"`
	StartedAt          time.Time  `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}
