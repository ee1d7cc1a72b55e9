package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-backend/pkg/mimetree"
)

type pipelineHarness struct {
	deps PipelineDeps

	notes       []string
	progress    []ProgressUpdate
	heartbeats  int
	failReason  string
	completed   *CompleteInput
	totalSet    int
	storedMeta  []StoreMetadataInput
	storedBodys []StoreBodyInput
}

func textPart(body string) *mimetree.Part {
	return &mimetree.Part{
		MimeType: "multipart/alternative",
		Parts: []*mimetree.Part{
			{MimeType: "text/plain", Data: base64.RawURLEncoding.EncodeToString([]byte(body))},
		},
	}
}

// newHarness wires happy-path fakes for the given message ids. Tests
// override individual fields to inject failures.
func newHarness(messageIDs ...string) *pipelineHarness {
	h := &pipelineHarness{}
	h.deps = PipelineDeps{
		ListMessages: func(ctx context.Context) ([]MessageCandidate, error) {
			candidates := make([]MessageCandidate, 0, len(messageIDs))
			for _, id := range messageIDs {
				candidates = append(candidates, MessageCandidate{ID: id, ThreadID: "t-" + id})
			}
			return candidates, nil
		},
		FetchMetadata: func(ctx context.Context, messageID string) (*MessageMetadata, error) {
			return &MessageMetadata{
				MessageID: messageID,
				ThreadID:  "t-" + messageID,
				Subject:   "Weekly digest",
				From:      "Digest <hello@mail.substackmail.com>",
				SentAt:    time.Now(),
			}, nil
		},
		FetchFullMessage: func(ctx context.Context, messageID string) (*mimetree.Part, error) {
			return textPart("Acme launched a new widget this week."), nil
		},
		StoreEmailMetadata: func(input StoreMetadataInput) (string, error) {
			h.storedMeta = append(h.storedMeta, input)
			return "email-" + input.MessageID, nil
		},
		StoreEmailBody: func(input StoreBodyInput) error {
			h.storedBodys = append(h.storedBodys, input)
			return nil
		},
		ExtractCompanies: func(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
			return &ExtractOutput{Created: 1, CostUSD: 0.01}, nil
		},
		UpdateProgress: func(update ProgressUpdate) error {
			h.progress = append(h.progress, update)
			return nil
		},
		MarkFailed: func(reason string) error {
			h.failReason = reason
			return nil
		},
		CompleteRun: func(input CompleteInput) error {
			h.completed = &input
			return nil
		},
		SetTotals: func(totalMessages int) error {
			h.totalSet = totalMessages
			return nil
		},
		LogError: func(code, message, context string) {
			h.notes = append(h.notes, code)
		},
		Heartbeat: func() {
			h.heartbeats++
		},
	}
	return h
}

func testConfig(capUSD float64) PipelineConfig {
	return PipelineConfig{RunID: "run-1", UserID: "user-1", CostCapUSD: capUSD, RetentionExpiry: 123}
}

func TestRunPipeline_HappyPath(t *testing.T) {
	h := newHarness("m1", "m2", "m3")

	result, err := RunPipeline(context.Background(), testConfig(5.0), h.deps)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ProcessedMessages)
	assert.Equal(t, 3, result.NewslettersClassified)
	assert.Equal(t, 3, result.ProcessedCompanies)
	assert.InDelta(t, 0.03, result.TotalCostUSD, 1e-9)
	assert.False(t, result.AbortedByBudget)

	assert.Equal(t, 3, h.totalSet)
	assert.Equal(t, 3, h.heartbeats)
	assert.Empty(t, h.notes)
	assert.Empty(t, h.failReason)

	require.NotNil(t, h.completed)
	assert.Equal(t, 3, h.completed.ProcessedMessages)
	assert.Equal(t, 3, h.completed.ProcessedCompanies)

	// Progress is pushed after every message with the running counters.
	require.Len(t, h.progress, 3)
	assert.Equal(t, 1, h.progress[0].ProcessedMessages)
	assert.Equal(t, 3, h.progress[2].ProcessedMessages)
	assert.InDelta(t, 0.03, h.progress[2].CostUSD, 1e-9)

	require.Len(t, h.storedBodys, 3)
	assert.Equal(t, int64(123), h.storedBodys[0].RetentionExpiry)
}

func TestRunPipeline_MetadataFailureIsIsolated(t *testing.T) {
	h := newHarness("m1", "m2")
	fetchMetadata := h.deps.FetchMetadata
	h.deps.FetchMetadata = func(ctx context.Context, messageID string) (*MessageMetadata, error) {
		if messageID == "m1" {
			return nil, errors.New("backend unavailable")
		}
		return fetchMetadata(ctx, messageID)
	}

	result, err := RunPipeline(context.Background(), testConfig(5.0), h.deps)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedMessages)
	assert.Equal(t, 1, result.NewslettersClassified)
	assert.Equal(t, 1, result.ProcessedCompanies)
	assert.Equal(t, []string{"gmail_metadata_failed"}, h.notes)
	require.NotNil(t, h.completed)
	assert.Equal(t, 2, h.completed.ProcessedMessages)
}

func TestRunPipeline_MissingBodySkipsMessage(t *testing.T) {
	h := newHarness("m1")
	h.deps.FetchFullMessage = func(ctx context.Context, messageID string) (*mimetree.Part, error) {
		return nil, nil
	}

	result, err := RunPipeline(context.Background(), testConfig(5.0), h.deps)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedMessages)
	assert.Equal(t, 0, result.NewslettersClassified)
	assert.Equal(t, []string{"gmail_body_missing"}, h.notes)
	assert.Empty(t, h.storedMeta)
	require.NotNil(t, h.completed)
}

func TestRunPipeline_BudgetAbort(t *testing.T) {
	h := newHarness("m1", "m2", "m3")
	h.deps.ExtractCompanies = func(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
		return &ExtractOutput{Created: 2, CostUSD: 0.30}, nil
	}

	result, err := RunPipeline(context.Background(), testConfig(0.50), h.deps)
	require.NoError(t, err)

	// The second message pushes spend to 0.60 which crosses the cap.
	assert.True(t, result.AbortedByBudget)
	assert.Equal(t, 2, result.ProcessedMessages)
	assert.Equal(t, 4, result.ProcessedCompanies)
	assert.InDelta(t, 0.60, result.TotalCostUSD, 1e-9)

	assert.Equal(t, []string{"cost_cap_exceeded"}, h.notes)
	assert.Equal(t, "Scan aborted: estimated OpenAI spend $0.60 exceeded $0.50 limit", h.failReason)
	assert.Nil(t, h.completed)
}

func TestRunPipeline_SkippedExtractionNotClassified(t *testing.T) {
	h := newHarness("m1")
	h.deps.ExtractCompanies = func(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
		return nil, nil
	}

	result, err := RunPipeline(context.Background(), testConfig(5.0), h.deps)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedMessages)
	assert.Equal(t, 0, result.NewslettersClassified)
	assert.Equal(t, 0, result.ProcessedCompanies)
	require.NotNil(t, h.completed)
}

func TestRunPipeline_ListFailureFails(t *testing.T) {
	h := newHarness()
	h.deps.ListMessages = func(ctx context.Context) ([]MessageCandidate, error) {
		return nil, errors.New("mailbox offline")
	}

	_, err := RunPipeline(context.Background(), testConfig(5.0), h.deps)
	assert.Error(t, err)
}

func TestRunPipeline_CancelledContextStopsLoop(t *testing.T) {
	h := newHarness("m1", "m2")
	ctx, cancel := context.WithCancel(context.Background())

	processed := 0
	h.deps.FetchMetadata = func(ctx context.Context, messageID string) (*MessageMetadata, error) {
		processed++
		cancel()
		return nil, fmt.Errorf("aborted")
	}

	_, err := RunPipeline(ctx, testConfig(5.0), h.deps)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, processed)
	assert.Nil(t, h.completed)
}
