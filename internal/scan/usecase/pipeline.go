package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"relay-backend/pkg/mimetree"
	"relay-backend/pkg/newsletter"
)

// MessageCandidate is a mailbox message id pair from the listing phase
type MessageCandidate struct {
	ID       string
	ThreadID string
}

// MessageMetadata holds the headers needed to classify a message
type MessageMetadata struct {
	MessageID string
	ThreadID  string
	Subject   string
	From      string
	ListID    string
	SentAt    time.Time
}

// StoreMetadataInput is the persisted view of a classified message
type StoreMetadataInput struct {
	RunID     string
	MessageID string
	ThreadID  string
	Subject   string
	From      string
	ListID    string
	Platform  newsletter.Platform
	SentAt    time.Time
}

// StoreBodyInput carries the normalized body for retention-bound storage
type StoreBodyInput struct {
	RunID           string
	EmailID         string
	Normalized      *mimetree.Normalized
	RetentionExpiry int64
}

// ExtractInput feeds one normalized message into company extraction
type ExtractInput struct {
	RunID      string
	UserID     string
	EmailID    string
	MessageID  string
	Metadata   MessageMetadata
	Normalized *mimetree.Normalized
	Platform   newsletter.Platform
}

// ExtractOutput reports what extraction produced for one message
type ExtractOutput struct {
	Created int
	CostUSD float64
}

// ProgressUpdate is pushed after every processed message
type ProgressUpdate struct {
	ProcessedMessages     int
	NewslettersClassified int
	ProcessedCompanies    int
	CostUSD               float64
}

// CompleteInput carries the final counters for a finished run
type CompleteInput struct {
	ProcessedMessages     int
	NewslettersClassified int
	ProcessedCompanies    int
}

// PipelineDeps are the collaborators the pipeline drives. Every field is a
// function so the composition layer can wire real services and tests can
// substitute fakes without interface ceremony.
type PipelineDeps struct {
	ListMessages       func(ctx context.Context) ([]MessageCandidate, error)
	FetchMetadata      func(ctx context.Context, messageID string) (*MessageMetadata, error)
	FetchFullMessage   func(ctx context.Context, messageID string) (*mimetree.Part, error)
	StoreEmailMetadata func(input StoreMetadataInput) (string, error)
	StoreEmailBody     func(input StoreBodyInput) error
	// ExtractCompanies returns (nil, nil) when extraction was skipped for the
	// message; the message then counts as processed but not classified.
	ExtractCompanies func(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
	UpdateProgress   func(update ProgressUpdate) error
	MarkFailed       func(reason string) error
	CompleteRun      func(input CompleteInput) error
	SetTotals        func(totalMessages int) error
	LogError         func(code, message, context string)
	// Heartbeat is invoked once per message so a supervisor can tell a slow
	// run from a stuck one. Optional.
	Heartbeat func()
}

// PipelineConfig carries the per-run knobs
type PipelineConfig struct {
	RunID           string
	UserID          string
	CostCapUSD      float64
	RetentionExpiry int64
}

// PipelineResult summarizes a finished (or budget-aborted) run
type PipelineResult struct {
	ProcessedMessages     int
	NewslettersClassified int
	ProcessedCompanies    int
	TotalCostUSD          float64
	AbortedByBudget       bool
}

// RunPipeline executes a full scan: list candidates, then for each message
// fetch metadata and body, classify the platform, persist, and extract
// companies. Failures on a single message are logged and skipped so one bad
// message never kills the run. The loop stops early when accumulated spend
// reaches the cost cap or the context is cancelled.
func RunPipeline(ctx context.Context, config PipelineConfig, deps PipelineDeps) (*PipelineResult, error) {
	messages, err := deps.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := deps.SetTotals(len(messages)); err != nil {
		return nil, fmt.Errorf("set totals: %w", err)
	}

	processed := 0
	classified := 0
	companies := 0
	totalCostUSD := 0.0
	abortedByBudget := false

	pushProgress := func() error {
		return deps.UpdateProgress(ProgressUpdate{
			ProcessedMessages:     processed,
			NewslettersClassified: classified,
			ProcessedCompanies:    companies,
			CostUSD:               roundCost(totalCostUSD),
		})
	}

	for _, message := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if deps.Heartbeat != nil {
			deps.Heartbeat()
		}
		processed++

		metadata, err := deps.FetchMetadata(ctx, message.ID)
		if err != nil {
			deps.LogError("gmail_metadata_failed", err.Error(), message.ID)
			if err := pushProgress(); err != nil {
				return nil, err
			}
			continue
		}
		if metadata == nil {
			deps.LogError("gmail_metadata_missing", "Metadata not found", message.ID)
			if err := pushProgress(); err != nil {
				return nil, err
			}
			continue
		}

		var normalized *mimetree.Normalized
		payload, err := deps.FetchFullMessage(ctx, message.ID)
		if err != nil {
			deps.LogError("gmail_body_failed", err.Error(), message.ID)
			if err := pushProgress(); err != nil {
				return nil, err
			}
			continue
		}
		if payload != nil {
			n := mimetree.Normalize(payload)
			normalized = &n
		}
		if normalized == nil {
			deps.LogError("gmail_body_missing", "Body not found", message.ID)
			if err := pushProgress(); err != nil {
				return nil, err
			}
			continue
		}

		platform := newsletter.ClassifyFromMetadata(newsletter.Metadata{
			From:    metadata.From,
			ListID:  metadata.ListID,
			Subject: metadata.Subject,
		})
		body := normalized.HTML
		if body == "" {
			body = normalized.Text
		}
		platform = newsletter.RefineWithBody(body, platform)

		emailID, err := deps.StoreEmailMetadata(StoreMetadataInput{
			RunID:     config.RunID,
			MessageID: metadata.MessageID,
			ThreadID:  metadata.ThreadID,
			Subject:   metadata.Subject,
			From:      metadata.From,
			ListID:    metadata.ListID,
			Platform:  platform,
			SentAt:    metadata.SentAt,
		})
		if err != nil {
			return nil, fmt.Errorf("store email metadata: %w", err)
		}

		if err := deps.StoreEmailBody(StoreBodyInput{
			RunID:           config.RunID,
			EmailID:         emailID,
			Normalized:      normalized,
			RetentionExpiry: config.RetentionExpiry,
		}); err != nil {
			return nil, fmt.Errorf("store email body: %w", err)
		}

		extraction, err := deps.ExtractCompanies(ctx, ExtractInput{
			RunID:      config.RunID,
			UserID:     config.UserID,
			EmailID:    emailID,
			MessageID:  metadata.MessageID,
			Metadata:   *metadata,
			Normalized: normalized,
			Platform:   platform,
		})
		if err != nil {
			return nil, fmt.Errorf("extract companies: %w", err)
		}

		if extraction != nil {
			companies += extraction.Created
			classified++
			totalCostUSD += extraction.CostUSD
			if err := pushProgress(); err != nil {
				return nil, err
			}
		}

		if totalCostUSD >= config.CostCapUSD {
			abortedByBudget = true
			spent := roundCost(totalCostUSD)
			reason := fmt.Sprintf("Scan aborted: estimated OpenAI spend $%.2f exceeded $%.2f limit", spent, config.CostCapUSD)
			deps.LogError("cost_cap_exceeded", reason, "")
			if err := deps.MarkFailed(reason); err != nil {
				return nil, fmt.Errorf("mark failed: %w", err)
			}
			break
		}
	}

	if !abortedByBudget {
		if err := deps.CompleteRun(CompleteInput{
			ProcessedMessages:     processed,
			NewslettersClassified: classified,
			ProcessedCompanies:    companies,
		}); err != nil {
			return nil, fmt.Errorf("complete run: %w", err)
		}
	}

	return &PipelineResult{
		ProcessedMessages:     processed,
		NewslettersClassified: classified,
		ProcessedCompanies:    companies,
		TotalCostUSD:          roundCost(totalCostUSD),
		AbortedByBudget:       abortedByBudget,
	}, nil
}

func roundCost(v float64) float64 {
	return math.Round(v*10000) / 10000
}
