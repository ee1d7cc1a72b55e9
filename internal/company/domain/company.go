package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Decision is the user's triage state for a company
type Decision string

const (
	DecisionUnreviewed Decision = "unreviewed"
	DecisionSaved      Decision = "saved"
	DecisionIgnored    Decision = "ignored"
)

// ValidDecision reports whether the value is an accepted triage state
func ValidDecision(value string) bool {
	switch Decision(value) {
	case DecisionUnreviewed, DecisionSaved, DecisionIgnored:
		return true
	}
	return false
}

// MaxSnippets caps how many evidence quotes a company keeps
const MaxSnippets = 4

// Snippet is an evidence quote lifted from a newsletter
type Snippet struct {
	Quote string `json:"quote"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// SnippetList stores snippets as a jsonb column
type SnippetList []Snippet

func (l SnippetList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *SnippetList) Scan(value interface{}) error {
	if value == nil {
		*l = SnippetList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for SnippetList")
	}
	return json.Unmarshal(data, l)
}

// StringList stores string slices as a jsonb column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for StringList")
	}
	return json.Unmarshal(data, l)
}

// Company is one deduplicated company surfaced from newsletters
type Company struct {
	ID                 string      `json:"id" gorm:"primaryKey"`
	UserID             string      `json:"userId" gorm:"index:idx_company_user"`
	RunID              string      `json:"runId" gorm:"index"`
	Name               string      `json:"name"`
	NormalizedName     string      `json:"-" gorm:"index:idx_company_norm_name"`
	CanonicalDomain    string      `json:"canonicalDomain" gorm:"index:idx_company_domain"`
	HomepageURL        string      `json:"homepageUrl"`
	AltDomains         StringList  `json:"altDomains" gorm:"type:jsonb"`
	OneLineSummary     string      `json:"oneLineSummary"`
	Category           string      `json:"category"`
	Stage              string      `json:"stage"`
	Location           string      `json:"location"`
	NewsletterPlatform string      `json:"newsletterPlatform"`
	KeySignals         StringList  `json:"keySignals" gorm:"type:jsonb"`
	SourceEmailIDs     StringList  `json:"sourceEmailIds" gorm:"type:jsonb"`
	Snippets           SnippetList `json:"sourceSnippets" gorm:"type:jsonb"`
	Confidence         float64     `json:"confidence"`
	Decision           Decision    `json:"decision"`
	Score              float64     `json:"score"`
	FirstSeenAt        time.Time   `json:"firstSeenAt"`
	LastSeenAt         time.Time   `json:"lastSeenAt"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

func (Company) TableName() string {
	return "companies"
}
