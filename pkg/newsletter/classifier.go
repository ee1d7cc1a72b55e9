package newsletter

import (
	"fmt"
	"regexp"
	"strings"
)

// Platform identifies the publishing platform behind a newsletter email.
type Platform string

const (
	PlatformSubstack   Platform = "substack"
	PlatformBeehiiv    Platform = "beehiiv"
	PlatformButtondown Platform = "buttondown"
	PlatformUnknown    Platform = "unknown"
)

// Metadata is the header subset the metadata phase looks at.
type Metadata struct {
	From    string
	ListID  string
	Subject string
}

type platformRule struct {
	platform Platform
	patterns []*regexp.Regexp
}

// Ordered; first match wins.
var keywordRules = []platformRule{
	{PlatformSubstack, compileAll(
		`(?i)substack\.com`,
		`(?i)\.substackmail\.com`,
		`(?i)\.substack\.com`,
	)},
	{PlatformBeehiiv, compileAll(
		`(?i)beehiiv\.com`,
		`(?i)\.beehiiv\.com`,
	)},
	{PlatformButtondown, compileAll(
		`(?i)buttondown\.email`,
		`(?i)\.buttondown\.email`,
		`(?i)buttondown\.com`,
	)},
}

var bodyConfirmationRules = []platformRule{
	{PlatformSubstack, compileAll(
		`(?i)Powered by Substack`,
		`(?i)view this email in your browser`,
	)},
	{PlatformBeehiiv, compileAll(
		`(?i)beehiiv`,
		`(?i)view newsletter in your browser`,
	)},
	{PlatformButtondown, compileAll(
		`(?i)Buttondown`,
		`(?i)unsubscribe from this list`,
	)},
}

var angleBracketPattern = regexp.MustCompile(`<([^>]+)>`)

// BuildQuery formats the provider search query for newsletter candidates.
// The time window is clamped to [1,365] days.
func BuildQuery(timeWindowDays int) string {
	days := timeWindowDays
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}

	senderDomains := []string{"substack.com", "substackmail.com", "beehiiv.com", "buttondown.email"}
	filters := make([]string, 0, len(senderDomains))
	for _, domain := range senderDomains {
		filters = append(filters, "from:"+domain)
	}

	return strings.Join([]string{
		fmt.Sprintf("newer_than:%dd", days),
		"has:link",
		"category:updates",
		"-is:chat",
		"(" + strings.Join(filters, " OR ") + ")",
	}, " ")
}

// ClassifyFromMetadata runs the metadata phase: sender domain, list-id
// domain and subject are concatenated and tested against the keyword
// tables in declared platform order.
func ClassifyFromMetadata(meta Metadata) Platform {
	parts := []string{}
	if domain := extractFromDomain(meta.From); domain != "" {
		parts = append(parts, domain)
	}
	if domain := extractListDomain(meta.ListID); domain != "" {
		parts = append(parts, domain)
	}
	if meta.Subject != "" {
		parts = append(parts, meta.Subject)
	}
	haystack := strings.Join(parts, " ")

	for _, rule := range keywordRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(haystack) {
				return rule.platform
			}
		}
	}
	return PlatformUnknown
}

// RefineWithBody runs the body-confirmation phase. A platform already
// resolved from metadata is never downgraded.
func RefineWithBody(body string, initial Platform) Platform {
	if body == "" || initial != PlatformUnknown {
		return initial
	}
	for _, rule := range bodyConfirmationRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(body) {
				return rule.platform
			}
		}
	}
	return initial
}

func extractFromDomain(from string) string {
	address := from
	if match := angleBracketPattern.FindStringSubmatch(from); match != nil {
		address = match[1]
	}
	parts := strings.SplitN(address, "@", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

func extractListDomain(listID string) string {
	if listID == "" {
		return ""
	}
	value := listID
	if match := angleBracketPattern.FindStringSubmatch(listID); match != nil {
		value = match[1]
	}
	parts := strings.SplitN(value, "@", 2)
	if len(parts) == 2 {
		return strings.ToLower(parts[1])
	}
	return strings.ToLower(value)
}

func compileAll(exprs ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}
