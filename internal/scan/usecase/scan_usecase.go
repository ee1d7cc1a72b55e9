package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	authusecase "relay-backend/internal/auth/usecase"
	companydomain "relay-backend/internal/company/domain"
	companyusecase "relay-backend/internal/company/usecase"
	scandomain "relay-backend/internal/scan/domain"
	scandto "relay-backend/internal/scan/dto"
	scanrepository "relay-backend/internal/scan/repository"
	"relay-backend/pkg/config"
	"relay-backend/pkg/gmail"
	"relay-backend/pkg/imap"
	"relay-backend/pkg/linkmeta"
	"relay-backend/pkg/mimetree"
	"relay-backend/pkg/newsletter"
	"relay-backend/pkg/openai"

	"golang.org/x/oauth2"
)

const (
	maxLinkSnapshots = 2
	progressNoteTail = 5
	maxRunListLimit  = 50
)

// linkBlocklist holds newsletter and mail infrastructure domains that
// never identify an extracted company.
var linkBlocklist = []string{"substack.com", "substackmail.com", "beehiiv.com", "buttondown.email", "gmail.com"}

var (
	ErrRunNotFound = errors.New("scan run not found")
)

// ScanUsecase starts scans and serves run progress
type ScanUsecase interface {
	// StartScan validates preconditions, creates a run and launches the
	// pipeline in the background. It returns the run id immediately.
	StartScan(userID string, timeWindowDays *int) (string, error)
	Progress(userID, runID string) (*scandto.ProgressResponse, error)
	ListRuns(userID string, limit int) ([]scandto.RunSummaryResponse, error)
	// Shutdown cancels all in-flight scans
	Shutdown()
}

// scanUsecase implements ScanUsecase interface
type scanUsecase struct {
	config       *config.Config
	runRepo      scanrepository.RunRepository
	emailRepo    scanrepository.EmailRepository
	linkRepo     scanrepository.LinkRepository
	tokenUsecase authusecase.TokenUsecase
	resolver     *companyusecase.Resolver
	gmailService *gmail.Service
	extractor    *openai.Client
	linkFetcher  *linkmeta.Fetcher

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// NewScanUsecase creates a new instance of scanUsecase
func NewScanUsecase(
	cfg *config.Config,
	runRepo scanrepository.RunRepository,
	emailRepo scanrepository.EmailRepository,
	linkRepo scanrepository.LinkRepository,
	tokenUsecase authusecase.TokenUsecase,
	resolver *companyusecase.Resolver,
	gmailService *gmail.Service,
	extractor *openai.Client,
	linkFetcher *linkmeta.Fetcher,
) ScanUsecase {
	ctx, cancel := context.WithCancel(context.Background())
	return &scanUsecase{
		config:       cfg,
		runRepo:      runRepo,
		emailRepo:    emailRepo,
		linkRepo:     linkRepo,
		tokenUsecase: tokenUsecase,
		resolver:     resolver,
		gmailService: gmailService,
		extractor:    extractor,
		linkFetcher:  linkFetcher,
		rootCtx:      ctx,
		rootCancel:   cancel,
	}
}

func (u *scanUsecase) StartScan(userID string, timeWindowDays *int) (string, error) {
	timeWindow := u.config.TimeWindowDays
	if timeWindowDays != nil && *timeWindowDays > 0 {
		timeWindow = *timeWindowDays
	}

	// Gmail is the primary source; a stored IMAP account is the fallback
	// when the user never connected Google.
	scopeErr := u.tokenUsecase.RequireScopes(userID, authusecase.GmailReadonlyScope)
	var imapService *imap.Service
	if scopeErr != nil {
		if !errors.Is(scopeErr, authusecase.ErrNoTokens) {
			return "", scopeErr
		}
		address, username, password, err := u.tokenUsecase.ImapCredentials(userID)
		if err != nil {
			if errors.Is(err, authusecase.ErrNoImapAccount) {
				return "", scopeErr
			}
			return "", err
		}
		imapService = imap.NewService(address, username, password)
	}

	run := &scandomain.ScanRun{
		UserID:         userID,
		Status:         scandomain.RunStatusRunning,
		TimeWindowDays: timeWindow,
	}
	if err := u.runRepo.Create(run); err != nil {
		return "", err
	}

	var source mailSource
	if imapService != nil {
		source = u.imapSource(run.ID, imapService, timeWindow)
	} else {
		accessToken, err := u.tokenUsecase.GetFreshAccessToken(u.rootCtx, userID)
		if err != nil {
			u.logRunError(run.ID, "google_token_refresh_failed", err.Error(), "")
			if markErr := u.runRepo.MarkFailed(run.ID, err.Error()); markErr != nil {
				log.Printf("[Scan] Failed to mark run %s failed: %v", run.ID, markErr)
			}
			return "", err
		}
		_, refreshToken, err := u.tokenUsecase.TokenPair(userID)
		if err != nil {
			return "", err
		}
		source = u.gmailSource(run.ID, userID, timeWindow, accessToken, refreshToken)
	}

	log.Printf("[Scan] Starting run %s for user %s (window %dd)", run.ID, userID, timeWindow)
	go u.execute(run.ID, userID, source)
	return run.ID, nil
}

// mailSource abstracts the listing and fetch phases over the Gmail and
// IMAP adapters so the pipeline wiring is source-agnostic.
type mailSource struct {
	list func(ctx context.Context) ([]MessageCandidate, error)
	meta func(ctx context.Context, messageID string) (*MessageMetadata, error)
	full func(ctx context.Context, messageID string) (*mimetree.Part, error)
}

// execute drives one pipeline run in the background. Any panic or error
// takes the run to failed so it never dangles in running.
func (u *scanUsecase) execute(runID, userID string, source mailSource) {
	ctx, cancel := context.WithCancel(u.rootCtx)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic: %v", r)
			u.logRunError(runID, "scan_failed", reason, "")
			if err := u.runRepo.MarkFailed(runID, reason); err != nil {
				log.Printf("[Scan] Failed to mark run %s failed: %v", runID, err)
			}
		}
	}()

	retentionExpiry := time.Now().Add(time.Duration(u.config.RetentionDays) * 24 * time.Hour).UnixMilli()
	pipelineConfig := PipelineConfig{
		RunID:           runID,
		UserID:          userID,
		CostCapUSD:      u.config.ScanCostCapUSD,
		RetentionExpiry: retentionExpiry,
	}

	result, err := RunPipeline(ctx, pipelineConfig, u.buildDeps(runID, userID, source))
	if err != nil {
		u.logRunError(runID, "scan_failed", err.Error(), "")
		if markErr := u.runRepo.MarkFailed(runID, err.Error()); markErr != nil {
			log.Printf("[Scan] Failed to mark run %s failed: %v", runID, markErr)
		}
		return
	}

	log.Printf("[Scan] Run %s finished: processed=%d classified=%d companies=%d cost=$%.4f abortedByBudget=%t",
		runID, result.ProcessedMessages, result.NewslettersClassified, result.ProcessedCompanies,
		result.TotalCostUSD, result.AbortedByBudget)
}

// gmailSource wires the Gmail adapter, persisting any access token
// rotation the underlying token source performs.
func (u *scanUsecase) gmailSource(runID, userID string, timeWindowDays int, accessToken, refreshToken string) mailSource {
	onTokenRefresh := func(token *oauth2.Token) error {
		return u.tokenUsecase.UpdateAccessToken(userID, token.AccessToken, token.Expiry)
	}

	return mailSource{
		list: func(ctx context.Context) ([]MessageCandidate, error) {
			query := newsletter.BuildQuery(timeWindowDays)
			candidates, err := u.gmailService.ListCandidates(ctx, accessToken, refreshToken, query, u.config.MaxScanMessages, onTokenRefresh)
			if err != nil {
				u.logRunError(runID, "gmail_list_failed", err.Error(), query)
				return nil, err
			}
			if len(candidates) == 0 {
				log.Printf("[Scan] No newsletter candidates found for run %s (query %q)", runID, query)
			}
			out := make([]MessageCandidate, len(candidates))
			for i, c := range candidates {
				out[i] = MessageCandidate{ID: c.ID, ThreadID: c.ThreadID}
			}
			return out, nil
		},
		meta: func(ctx context.Context, messageID string) (*MessageMetadata, error) {
			meta, err := u.gmailService.FetchMetadata(ctx, accessToken, refreshToken, messageID, onTokenRefresh)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				return nil, nil
			}
			return &MessageMetadata{
				MessageID: meta.ID,
				ThreadID:  meta.ThreadID,
				Subject:   meta.Subject,
				From:      meta.From,
				ListID:    meta.ListID,
				SentAt:    meta.SentAt,
			}, nil
		},
		full: func(ctx context.Context, messageID string) (*mimetree.Part, error) {
			return u.gmailService.FetchFullMessage(ctx, accessToken, refreshToken, messageID, onTokenRefresh)
		},
	}
}

// imapSource wires the IMAP adapter. The IMAP search is date-bounded
// only; the classifier filters non-newsletter mail downstream.
func (u *scanUsecase) imapSource(runID string, service *imap.Service, timeWindowDays int) mailSource {
	return mailSource{
		list: func(ctx context.Context) ([]MessageCandidate, error) {
			candidates, err := service.ListCandidates(timeWindowDays, u.config.MaxScanMessages)
			if err != nil {
				u.logRunError(runID, "gmail_list_failed", err.Error(), "imap")
				return nil, err
			}
			out := make([]MessageCandidate, len(candidates))
			for i, c := range candidates {
				out[i] = MessageCandidate{ID: c.ID, ThreadID: c.ThreadID}
			}
			return out, nil
		},
		meta: func(ctx context.Context, messageID string) (*MessageMetadata, error) {
			meta, err := service.FetchMetadata(messageID)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				return nil, nil
			}
			return &MessageMetadata{
				MessageID: meta.ID,
				ThreadID:  meta.ThreadID,
				Subject:   meta.Subject,
				From:      meta.From,
				ListID:    meta.ListID,
				SentAt:    meta.SentAt,
			}, nil
		},
		full: func(ctx context.Context, messageID string) (*mimetree.Part, error) {
			return service.FetchFullMessage(messageID)
		},
	}
}

func (u *scanUsecase) buildDeps(runID, userID string, source mailSource) PipelineDeps {
	return PipelineDeps{
		ListMessages:     source.list,
		FetchMetadata:    source.meta,
		FetchFullMessage: source.full,
		StoreEmailMetadata: func(input StoreMetadataInput) (string, error) {
			record, err := u.emailRepo.UpsertRecord(&scandomain.EmailRecord{
				RunID:       input.RunID,
				MessageID:   input.MessageID,
				ThreadID:    input.ThreadID,
				Subject:     input.Subject,
				FromAddress: input.From,
				ListID:      input.ListID,
				Platform:    string(input.Platform),
				SentAt:      input.SentAt,
			})
			if err != nil {
				return "", err
			}
			return record.ID, nil
		},
		StoreEmailBody: func(input StoreBodyInput) error {
			return u.emailRepo.UpsertBody(&scandomain.EmailBody{
				EmailID:         input.EmailID,
				RunID:           input.RunID,
				NormalizedHTML:  input.Normalized.HTML,
				NormalizedText:  input.Normalized.Text,
				Links:           scandomain.StringList(input.Normalized.Links),
				RetentionExpiry: input.RetentionExpiry,
			})
		},
		ExtractCompanies: func(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
			return u.extractForEmail(ctx, input)
		},
		UpdateProgress: func(update ProgressUpdate) error {
			return u.runRepo.UpdateProgress(runID, update.ProcessedMessages, update.NewslettersClassified, update.ProcessedCompanies, update.CostUSD)
		},
		MarkFailed: func(reason string) error {
			return u.runRepo.MarkFailed(runID, reason)
		},
		CompleteRun: func(input CompleteInput) error {
			return u.runRepo.Complete(runID, input.ProcessedMessages, input.NewslettersClassified, input.ProcessedCompanies)
		},
		SetTotals: func(totalMessages int) error {
			return u.runRepo.SetTotals(runID, totalMessages)
		},
		LogError: func(code, message, context string) {
			u.logRunError(runID, code, message, context)
		},
		Heartbeat: func() {
			if err := u.runRepo.Touch(runID); err != nil {
				log.Printf("[Scan] Heartbeat failed for run %s: %v", runID, err)
			}
		},
	}
}

// extractForEmail snapshots a few outbound links, asks the extraction
// model for company mentions and folds the valid ones into the knowledge
// base. Extraction failures are logged against the run and reported as a
// skip, not a pipeline error.
func (u *scanUsecase) extractForEmail(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
	text := input.Normalized.Text
	if text == "" {
		text = input.Normalized.HTML
	}
	if text == "" {
		return &ExtractOutput{}, nil
	}

	linkContexts := u.snapshotLinks(ctx, input.RunID, input.Normalized.Links)

	result, err := u.extractor.Extract(ctx, input.MessageID, text, linkContexts)
	if err != nil {
		u.logRunError(input.RunID, "openai_extraction_failed", err.Error(), input.MessageID)
		return nil, nil
	}

	created := 0
	for _, candidate := range result.Companies {
		name := strings.TrimSpace(candidate.Name)
		summary := strings.TrimSpace(candidate.OneLineSummary)
		if name == "" || summary == "" {
			continue
		}

		confidence := candidate.Confidence
		if confidence <= 0 {
			confidence = 0.5
		} else if confidence > 1 {
			confidence = 1
		}

		snippets := make([]companydomain.Snippet, 0, len(candidate.SourceSnippets))
		for _, s := range candidate.SourceSnippets {
			snippets = append(snippets, companydomain.Snippet{Quote: s.Quote, Start: s.Start, End: s.End})
		}
		if len(snippets) == 0 {
			snippets = []companydomain.Snippet{{Quote: summary}}
		}

		isNew, err := u.resolver.UpsertExtractedCompany(companyusecase.UpsertInput{
			UserID:         input.UserID,
			RunID:          input.RunID,
			EmailID:        input.EmailID,
			MessageID:      input.MessageID,
			Name:           name,
			HomepageURL:    sanitizeURL(candidate.HomepageURL),
			AltDomains:     candidate.AltDomains,
			OneLineSummary: summary,
			Category:       candidate.Category,
			Stage:          candidate.Stage,
			Location:       candidate.Location,
			Platform:       string(input.Platform),
			KeySignals:     candidate.KeySignals,
			Snippets:       snippets,
			Confidence:     confidence,
			SentAt:         input.Metadata.SentAt,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert company %q: %w", name, err)
		}
		if isNew {
			created++
		}
	}

	return &ExtractOutput{Created: created, CostUSD: result.CostUSD}, nil
}

// snapshotLinks fetches bounded page metadata for up to maxLinkSnapshots
// outbound links, skipping newsletter infrastructure domains. A fetch
// failure is noted on the run and the link skipped.
func (u *scanUsecase) snapshotLinks(ctx context.Context, runID string, links []string) []openai.LinkContext {
	snapshots := make([]openai.LinkContext, 0, maxLinkSnapshots)
	for _, candidate := range selectLinkCandidates(links) {
		meta, err := u.linkFetcher.Fetch(ctx, candidate)
		if err != nil {
			u.logRunError(runID, "link_snapshot_failed", err.Error(), candidate)
			continue
		}

		if err := u.linkRepo.Upsert(&scandomain.LinkSnapshot{
			RunID:        runID,
			URL:          meta.URL,
			Title:        meta.Title,
			Description:  meta.Description,
			CanonicalURL: meta.CanonicalURL,
			SocialLinks:  scandomain.StringList(meta.SocialLinks),
		}); err != nil {
			u.logRunError(runID, "link_snapshot_failed", err.Error(), candidate)
			continue
		}

		snapshots = append(snapshots, openai.LinkContext{
			URL:         meta.URL,
			Title:       meta.Title,
			Description: meta.Description,
		})
		if len(snapshots) >= maxLinkSnapshots {
			break
		}
	}
	return snapshots
}

func selectLinkCandidates(links []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, maxLinkSnapshots)
	for _, link := range links {
		lower := strings.ToLower(link)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		domain := companyusecase.DomainFromURL(link)
		if domain == "" || isBlockedDomain(domain) {
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
		if len(out) >= maxLinkSnapshots {
			break
		}
	}
	return out
}

// sanitizeURL normalizes a homepage URL, defaulting to https for bare
// domains. Unparseable values are dropped.
func sanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	normalized := raw
	if !strings.HasPrefix(raw, "http") {
		normalized = "https://" + raw
	}
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

func isBlockedDomain(domain string) bool {
	for _, blocked := range linkBlocklist {
		if strings.Contains(domain, blocked) {
			return true
		}
	}
	return false
}

func (u *scanUsecase) Progress(userID, runID string) (*scandto.ProgressResponse, error) {
	run, err := u.runRepo.FindByID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil || run.UserID != userID {
		return nil, ErrRunNotFound
	}

	notes := run.Notes
	if len(notes) > progressNoteTail {
		notes = notes[len(notes)-progressNoteTail:]
	}
	noteResponses := make([]scandto.RunNoteResponse, len(notes))
	for i, note := range notes {
		noteResponses[i] = scandto.RunNoteResponse{
			At:      note.At,
			Code:    note.Code,
			Message: note.Message,
			Context: note.Context,
		}
	}

	return &scandto.ProgressResponse{
		RunID:                 run.ID,
		Status:                string(run.Status),
		TotalMessages:         run.TotalMessages,
		ProcessedMessages:     run.ProcessedMessages,
		NewslettersClassified: run.NewslettersClassified,
		ProcessedCompanies:    run.ProcessedCompanies,
		ErrorCount:            run.ErrorCount,
		EstimatedCostUSD:      run.CostUsd,
		Notes:                 noteResponses,
		FailureReason:         run.FailureReason,
		StartedAt:             run.StartedAt,
		UpdatedAt:             run.UpdatedAt,
		CompletedAt:           run.CompletedAt,
	}, nil
}

func (u *scanUsecase) ListRuns(userID string, limit int) ([]scandto.RunSummaryResponse, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > maxRunListLimit {
		limit = maxRunListLimit
	}

	runs, err := u.runRepo.ListByUser(userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]scandto.RunSummaryResponse, len(runs))
	for i, run := range runs {
		out[i] = scandto.RunSummaryResponse{
			RunID:              run.ID,
			Status:             string(run.Status),
			ProcessedMessages:  run.ProcessedMessages,
			ProcessedCompanies: run.ProcessedCompanies,
			ErrorCount:         run.ErrorCount,
			EstimatedCostUSD:   run.CostUsd,
			StartedAt:          run.StartedAt,
			CompletedAt:        run.CompletedAt,
		}
	}
	return out, nil
}

func (u *scanUsecase) Shutdown() {
	u.rootCancel()
}

func (u *scanUsecase) logRunError(runID, code, message, context string) {
	log.Printf("[Scan] run=%s code=%s message=%s", runID, code, message)
	if err := u.runRepo.AppendNote(runID, code, message, context); err != nil {
		log.Printf("[Scan] Failed to append note to run %s: %v", runID, err)
	}
}
