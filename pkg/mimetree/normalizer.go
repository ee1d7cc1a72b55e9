package mimetree

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// Part is one node of a provider MIME payload tree. Body data is
// base64url-encoded the way the Gmail API returns it.
type Part struct {
	MimeType string
	Data     string
	Parts    []*Part
}

// Normalized is the decoded view of a message body. Empty HTML or Text
// means the corresponding part was absent or empty.
type Normalized struct {
	HTML  string
	Text  string
	Links []string
}

var (
	hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
)

// Normalize walks the part tree and produces plain text, HTML and the
// ordered set of links found in the HTML. The same input always yields
// the same output.
func Normalize(payload *Part) Normalized {
	if payload == nil {
		return Normalized{Links: []string{}}
	}

	htmlPart := findPart(payload, func(p *Part) bool {
		return strings.HasPrefix(strings.ToLower(p.MimeType), "text/html")
	})
	textPart := findPart(payload, func(p *Part) bool {
		return strings.HasPrefix(strings.ToLower(p.MimeType), "text/plain")
	})

	html := ""
	if htmlPart != nil && htmlPart.Data != "" {
		html = strings.TrimSpace(DecodeBase64URL(htmlPart.Data))
	}
	text := ""
	if textPart != nil && textPart.Data != "" {
		text = strings.TrimSpace(DecodeBase64URL(textPart.Data))
	}
	if text == "" && html != "" {
		text = StripHTML(html)
	}

	links := []string{}
	if html != "" {
		links = extractLinks(html)
	}

	return Normalized{HTML: html, Text: text, Links: links}
}

// DecodeBase64URL converts base64url data to its UTF-8 string form.
// Invalid input decodes to an empty string.
func DecodeBase64URL(data string) string {
	normalized := strings.ReplaceAll(data, "-", "+")
	normalized = strings.ReplaceAll(normalized, "_", "/")
	if pad := len(normalized) % 4; pad != 0 {
		normalized += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// StripHTML removes tags and collapses whitespace.
func StripHTML(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(text), " ")
}

func findPart(part *Part, predicate func(*Part) bool) *Part {
	if predicate(part) {
		return part
	}
	for _, child := range part.Parts {
		if match := findPart(child, predicate); match != nil {
			return match
		}
	}
	return nil
}

// extractLinks returns href targets in order of first appearance,
// deduplicated, skipping mailto: addresses.
func extractLinks(html string) []string {
	seen := make(map[string]bool)
	links := []string{}
	for _, match := range hrefPattern.FindAllStringSubmatch(html, -1) {
		raw := strings.TrimSpace(match[1])
		if raw == "" || strings.HasPrefix(raw, "mailto:") {
			continue
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		links = append(links, raw)
	}
	return links
}
