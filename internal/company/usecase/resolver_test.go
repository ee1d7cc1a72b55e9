package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	companydomain "relay-backend/internal/company/domain"
	companyrepository "relay-backend/internal/company/repository"
)

// fakeCompanyRepo keeps companies in a slice ordered by update recency,
// mimicking the lookups the resolver relies on.
type fakeCompanyRepo struct {
	companies []*companydomain.Company
	created   int
	updated   int
}

func (f *fakeCompanyRepo) Create(company *companydomain.Company) error {
	f.created++
	copied := *company
	f.companies = append([]*companydomain.Company{&copied}, f.companies...)
	return nil
}

func (f *fakeCompanyRepo) Update(company *companydomain.Company) error {
	f.updated++
	for i, existing := range f.companies {
		if existing.ID == company.ID || existing.NormalizedName == company.NormalizedName {
			copied := *company
			f.companies[i] = &copied
			return nil
		}
	}
	return nil
}

func (f *fakeCompanyRepo) FindByID(id string) (*companydomain.Company, error) {
	for _, c := range f.companies {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCompanyRepo) FindByDomain(userID, canonicalDomain string) (*companydomain.Company, error) {
	for _, c := range f.companies {
		if c.UserID == userID && c.CanonicalDomain == canonicalDomain {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCompanyRepo) FindByNormalizedName(userID, normalizedName string) (*companydomain.Company, error) {
	for _, c := range f.companies {
		if c.UserID == userID && c.NormalizedName == normalizedName {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCompanyRepo) FindRecent(userID string, limit int) ([]companydomain.Company, error) {
	out := []companydomain.Company{}
	for _, c := range f.companies {
		if c.UserID == userID {
			out = append(out, *c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCompanyRepo) List(userID string, filters companyrepository.ListFilters) ([]companydomain.Company, error) {
	return f.FindRecent(userID, len(f.companies))
}

func (f *fakeCompanyRepo) UpdateDecision(id string, decision companydomain.Decision) error {
	for _, c := range f.companies {
		if c.ID == id {
			c.Decision = decision
		}
	}
	return nil
}

func (f *fakeCompanyRepo) DeleteByUser(userID string) error {
	kept := f.companies[:0]
	for _, c := range f.companies {
		if c.UserID != userID {
			kept = append(kept, c)
		}
	}
	f.companies = kept
	return nil
}

func testResolver(repo companyrepository.CompanyRepository) *Resolver {
	return NewResolver(repo, ResolverConfig{
		FuzzyMatchThreshold: 0.92,
		RecencyFreshDays:    7,
		RecencyRecentDays:   30,
	})
}

func baseInput(sentAt time.Time) UpsertInput {
	return UpsertInput{
		UserID:         "user-1",
		RunID:          "run-1",
		EmailID:        "email-1",
		MessageID:      "msg-1",
		Name:           "Acme",
		HomepageURL:    "https://www.acme.example",
		OneLineSummary: "Widgets for consumers",
		Category:       "Commerce",
		Stage:          "seed",
		Platform:       "substack",
		KeySignals:     []string{"launch"},
		Snippets:       []companydomain.Snippet{{Quote: "Acme launched"}},
		Confidence:     0.6,
		SentAt:         sentAt,
	}
}

func TestUpsertExtractedCompany_CreatesNewRecord(t *testing.T) {
	repo := &fakeCompanyRepo{}
	resolver := testResolver(repo)

	created, err := resolver.UpsertExtractedCompany(baseInput(time.Now().Add(-24 * time.Hour)))
	require.NoError(t, err)
	assert.True(t, created)
	require.Equal(t, 1, repo.created)

	company := repo.companies[0]
	assert.Equal(t, "acme", company.NormalizedName)
	assert.Equal(t, "acme.example", company.CanonicalDomain)
	assert.Equal(t, companydomain.StringList{"msg-1"}, company.SourceEmailIDs)
	assert.Equal(t, companydomain.DecisionUnreviewed, company.Decision)
	// 0.5*0.6 + 0.2*0.5 + 0.15*1.0 + 0.1*0.3 for a fresh new company.
	assert.InDelta(t, 0.58, company.Score, 1e-9)
}

func TestUpsertExtractedCompany_MergesRepeatMention(t *testing.T) {
	repo := &fakeCompanyRepo{}
	resolver := testResolver(repo)

	first := baseInput(time.Now().Add(-48 * time.Hour))
	_, err := resolver.UpsertExtractedCompany(first)
	require.NoError(t, err)

	second := baseInput(time.Now().Add(-2 * time.Hour))
	second.MessageID = "msg-2"
	second.RunID = "run-2"
	second.KeySignals = []string{"launch", "funding"}
	second.Confidence = 0.9
	second.Snippets = []companydomain.Snippet{{Quote: "Acme raised a round"}}

	created, err := resolver.UpsertExtractedCompany(second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, repo.created)
	assert.Equal(t, 1, repo.updated)
	require.Len(t, repo.companies, 1)

	company := repo.companies[0]
	assert.Equal(t, "run-2", company.RunID)
	assert.Equal(t, companydomain.StringList{"msg-1", "msg-2"}, company.SourceEmailIDs)
	assert.Equal(t, companydomain.StringList{"launch", "funding"}, company.KeySignals)
	assert.InDelta(t, 0.9, company.Confidence, 1e-9)
	require.Len(t, company.Snippets, 2)

	assert.True(t, company.FirstSeenAt.Before(company.LastSeenAt))
	assert.WithinDuration(t, first.SentAt, company.FirstSeenAt, time.Second)
	assert.WithinDuration(t, second.SentAt, company.LastSeenAt, time.Second)
}

func TestUpsertExtractedCompany_MatchesByDomainDespiteNewName(t *testing.T) {
	repo := &fakeCompanyRepo{}
	resolver := testResolver(repo)

	_, err := resolver.UpsertExtractedCompany(baseInput(time.Now()))
	require.NoError(t, err)

	renamed := baseInput(time.Now())
	renamed.Name = "Acme Inc"
	renamed.MessageID = "msg-3"
	created, err := resolver.UpsertExtractedCompany(renamed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Acme Inc", repo.companies[0].Name)
}

func TestUpsertExtractedCompany_FuzzyNameMatch(t *testing.T) {
	repo := &fakeCompanyRepo{}
	resolver := testResolver(repo)

	first := baseInput(time.Now())
	first.Name = "Acme Labs"
	first.HomepageURL = ""
	_, err := resolver.UpsertExtractedCompany(first)
	require.NoError(t, err)

	near := baseInput(time.Now())
	near.Name = "Acme Lab"
	near.HomepageURL = ""
	near.MessageID = "msg-4"
	created, err := resolver.UpsertExtractedCompany(near)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, repo.companies, 1)
}

func TestUpsertExtractedCompany_SnippetsCapped(t *testing.T) {
	repo := &fakeCompanyRepo{}
	resolver := testResolver(repo)

	input := baseInput(time.Now())
	input.Snippets = []companydomain.Snippet{
		{Quote: "a"}, {Quote: "b"}, {Quote: "c"}, {Quote: "d"}, {Quote: "e"}, {Quote: "f"},
	}
	_, err := resolver.UpsertExtractedCompany(input)
	require.NoError(t, err)
	assert.Len(t, repo.companies[0].Snippets, companydomain.MaxSnippets)
}

func TestComputeScore(t *testing.T) {
	resolver := testResolver(&fakeCompanyRepo{})

	tests := []struct {
		name        string
		confidence  float64
		signals     []string
		recencyDays float64
		isNew       bool
		penalty     bool
		want        float64
	}{
		{"fresh new launch", 0.6, []string{"launch"}, 1, true, false, 0.58},
		{"stale repeat no signals", 0.6, nil, 90, false, false, 0.33},
		{"signal weights capped at one", 1.0, []string{"funding", "launch", "traction"}, 1, true, false, 0.88},
		{"sponsor penalty subtracts", 0.2, nil, 90, false, true, 0.0},
		{"mid recency", 0.5, nil, 20, false, false, 0.325},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.ComputeScore(tt.confidence, tt.signals, tt.recencyDays, tt.isNew, tt.penalty)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme", "acme"},
		{"  Acme   Labs ", "acme labs"},
		{"Acme, Inc.", "acme inc"},
		{"ACME-2", "acme2"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestDomainFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.acme.example/about", "acme.example"},
		{"http://Acme.Example", "acme.example"},
		{"acme.example", "acme.example"},
		{"", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainFromURL(tt.in), "input %q", tt.in)
	}
}
