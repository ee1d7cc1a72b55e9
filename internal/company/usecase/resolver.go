package usecase

import (
	"net/url"
	"strings"
	"time"

	companydomain "relay-backend/internal/company/domain"
	companyrepository "relay-backend/internal/company/repository"
	"relay-backend/pkg/fuzzy"
)

var signalWeights = map[string]float64{
	"waitlist":        0.3,
	"launch":          0.5,
	"funding":         0.6,
	"traction":        0.4,
	"notable_founder": 0.3,
	"partnership":     0.2,
}

const (
	defaultCategory = "Other"
	defaultStage    = "unknown"

	// fuzzyCandidatePool bounds how many recent companies are scanned for
	// a near-name match when exact lookups miss.
	fuzzyCandidatePool = 50
)

// ResolverConfig carries the matching and scoring tunables
type ResolverConfig struct {
	FuzzyMatchThreshold float64
	RecencyFreshDays    int
	RecencyRecentDays   int
}

// UpsertInput is one extracted company mention to fold into the knowledge base
type UpsertInput struct {
	UserID         string
	RunID          string
	EmailID        string
	MessageID      string
	Name           string
	HomepageURL    string
	AltDomains     []string
	OneLineSummary string
	Category       string
	Stage          string
	Location       string
	Platform       string
	KeySignals     []string
	Snippets       []companydomain.Snippet
	Confidence     float64
	SentAt         time.Time
}

// Resolver deduplicates extracted company mentions into stable records.
// Matching is tried in order: canonical domain, exact normalized name,
// then fuzzy name match against the most recent records.
type Resolver struct {
	companyRepo companyrepository.CompanyRepository
	config      ResolverConfig
}

// NewResolver creates a new instance of Resolver
func NewResolver(companyRepo companyrepository.CompanyRepository, config ResolverConfig) *Resolver {
	return &Resolver{
		companyRepo: companyRepo,
		config:      config,
	}
}

// UpsertExtractedCompany merges the mention into an existing record or
// creates a new one. It reports whether a new record was created.
func (r *Resolver) UpsertExtractedCompany(input UpsertInput) (bool, error) {
	normalizedName := NormalizeName(input.Name)
	canonicalDomain := deriveCanonicalDomain(input.HomepageURL, input.AltDomains)

	existing, err := r.findExisting(input.UserID, normalizedName, canonicalDomain)
	if err != nil {
		return false, err
	}

	now := time.Now()
	recencyDays := now.Sub(input.SentAt).Hours() / 24
	if recencyDays < 0 {
		recencyDays = 0
	}

	if existing == nil {
		signals := uniqueStrings(input.KeySignals)
		company := &companydomain.Company{
			UserID:             input.UserID,
			RunID:              input.RunID,
			Name:               input.Name,
			NormalizedName:     normalizedName,
			CanonicalDomain:    canonicalDomain,
			HomepageURL:        input.HomepageURL,
			AltDomains:         uniqueStrings(input.AltDomains),
			OneLineSummary:     input.OneLineSummary,
			Category:           defaultString(input.Category, defaultCategory),
			Stage:              defaultString(input.Stage, defaultStage),
			Location:           input.Location,
			NewsletterPlatform: input.Platform,
			KeySignals:         signals,
			SourceEmailIDs:     uniqueStrings([]string{input.MessageID}),
			Snippets:           capSnippets(input.Snippets),
			Confidence:         input.Confidence,
			Decision:           companydomain.DecisionUnreviewed,
			Score:              r.ComputeScore(input.Confidence, signals, recencyDays, true, false),
			FirstSeenAt:        input.SentAt,
			LastSeenAt:         input.SentAt,
		}
		if err := r.companyRepo.Create(company); err != nil {
			return false, err
		}
		return true, nil
	}

	mergedSignals := uniqueStrings(append(append([]string{}, existing.KeySignals...), input.KeySignals...))
	mergedSnippets := capSnippets(append(append([]companydomain.Snippet{}, existing.Snippets...), input.Snippets...))

	existing.RunID = input.RunID
	existing.Name = input.Name
	if input.HomepageURL != "" {
		existing.HomepageURL = input.HomepageURL
	}
	existing.AltDomains = uniqueStrings(append(append([]string{}, existing.AltDomains...), input.AltDomains...))
	existing.OneLineSummary = selectSummary(existing.OneLineSummary, input.OneLineSummary)
	existing.Category = defaultString(input.Category, defaultString(existing.Category, defaultCategory))
	existing.Stage = defaultString(input.Stage, defaultString(existing.Stage, defaultStage))
	existing.Location = defaultString(input.Location, existing.Location)
	existing.NewsletterPlatform = defaultString(input.Platform, existing.NewsletterPlatform)
	existing.KeySignals = mergedSignals
	existing.SourceEmailIDs = uniqueStrings(append(append([]string{}, existing.SourceEmailIDs...), input.MessageID))
	existing.Snippets = mergedSnippets
	if input.Confidence > existing.Confidence {
		existing.Confidence = input.Confidence
	}
	if input.SentAt.Before(existing.FirstSeenAt) {
		existing.FirstSeenAt = input.SentAt
	}
	if input.SentAt.After(existing.LastSeenAt) {
		existing.LastSeenAt = input.SentAt
	}
	existing.CanonicalDomain = canonicalDomain
	existing.NormalizedName = normalizedName
	existing.Score = r.ComputeScore(existing.Confidence, mergedSignals, recencyDays, false, false)

	if err := r.companyRepo.Update(existing); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Resolver) findExisting(userID, normalizedName, canonicalDomain string) (*companydomain.Company, error) {
	if canonicalDomain != "" {
		byDomain, err := r.companyRepo.FindByDomain(userID, canonicalDomain)
		if err != nil {
			return nil, err
		}
		if byDomain != nil {
			return byDomain, nil
		}
	}

	byName, err := r.companyRepo.FindByNormalizedName(userID, normalizedName)
	if err != nil {
		return nil, err
	}
	if byName != nil {
		return byName, nil
	}

	candidates, err := r.companyRepo.FindRecent(userID, fuzzyCandidatePool)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(candidates))
	for i, candidate := range candidates {
		names[i] = candidate.NormalizedName
	}
	if idx := fuzzy.BestMatch(names, normalizedName, r.config.FuzzyMatchThreshold); idx >= 0 {
		return &candidates[idx], nil
	}
	return nil, nil
}

// ComputeScore ranks a company for triage. The sponsorPenalty flag is
// accepted but no caller sets it yet; sponsored-content detection does not
// exist upstream.
func (r *Resolver) ComputeScore(confidence float64, signals []string, recencyDays float64, isNew bool, sponsorPenalty bool) float64 {
	signalScore := 0.0
	for _, signal := range signals {
		signalScore += signalWeights[signal]
	}
	if signalScore > 1 {
		signalScore = 1
	}

	recencyScore := 0.2
	if recencyDays <= float64(r.config.RecencyFreshDays) {
		recencyScore = 1.0
	} else if recencyDays <= float64(r.config.RecencyRecentDays) {
		recencyScore = 0.5
	}

	novelty := 0.0
	if isNew {
		novelty = 0.3
	}
	penalty := 0.0
	if sponsorPenalty {
		penalty = 1.0
	}

	raw := 0.5*confidence + 0.2*signalScore + 0.15*recencyScore + 0.1*novelty - 0.15*penalty
	if raw < 0 {
		return 0
	}
	if raw > 1 {
		return 1
	}
	return raw
}

// NormalizeName lowercases and strips everything but letters, digits and
// single spaces so name matching ignores punctuation and casing.
func NormalizeName(value string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// DomainFromURL extracts a lowercase hostname with any www. prefix
// removed. Bare domains without a scheme are accepted.
func DomainFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	normalized := raw
	if !strings.HasPrefix(raw, "http") {
		normalized = "https://" + raw
	}
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
}

func deriveCanonicalDomain(homepageURL string, altDomains []string) string {
	for _, value := range append([]string{homepageURL}, altDomains...) {
		if domain := DomainFromURL(value); domain != "" {
			return domain
		}
	}
	return ""
}

func capSnippets(snippets []companydomain.Snippet) companydomain.SnippetList {
	if len(snippets) > companydomain.MaxSnippets {
		snippets = snippets[:companydomain.MaxSnippets]
	}
	return companydomain.SnippetList(snippets)
}

// selectSummary keeps the current summary unless the incoming one is
// longer and still fits a one-liner.
func selectSummary(current, incoming string) string {
	if current == "" {
		return incoming
	}
	if incoming == "" {
		return current
	}
	if len(incoming) > len(current) && len(incoming) <= 140 {
		return incoming
	}
	return current
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func uniqueStrings(values []string) companydomain.StringList {
	seen := make(map[string]bool, len(values))
	out := make(companydomain.StringList, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}
