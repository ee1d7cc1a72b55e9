package linkmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultTimeout  = 2 * time.Second
	defaultMaxBytes = 256 * 1024
)

var socialDomains = []string{"twitter.com", "x.com", "linkedin.com", "instagram.com", "tiktok.com"}

var (
	titlePattern       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	descriptionPattern = regexp.MustCompile(`(?i)<meta\s+(?:name|property)=["'](?:description|og:description)["'][^>]*content=["']([^"']+)["']`)
	canonicalPattern   = regexp.MustCompile(`(?i)<link\s+rel=["']canonical["'][^>]*href=["']([^"']+)["']`)
	hrefPattern        = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
)

// Metadata is the page summary captured for a candidate link.
type Metadata struct {
	URL          string
	Title        string
	Description  string
	CanonicalURL string
	SocialLinks  []string
	FetchedAt    time.Time
}

// Fetcher retrieves bounded page metadata for links found in newsletters.
type Fetcher struct {
	timeout    time.Duration
	maxBytes   int64
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		timeout:    timeout,
		maxBytes:   maxBytes,
		httpClient: &http.Client{},
	}
}

// Fetch downloads up to maxBytes of the page within the wall-clock
// timeout and scrapes title, description, canonical URL and social links.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("link fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("link fetch failed (%d)", resp.StatusCode)
	}

	// Read is truncated once the byte cap is reached.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("link fetch read failed: %w", err)
	}
	html := string(body)

	return &Metadata{
		URL:          target,
		Title:        extractFirst(titlePattern, html),
		Description:  extractFirst(descriptionPattern, html),
		CanonicalURL: strings.TrimSpace(rawFirst(canonicalPattern, html)),
		SocialLinks:  extractSocialLinks(html),
		FetchedAt:    time.Now(),
	}, nil
}

func extractFirst(pattern *regexp.Regexp, html string) string {
	raw := rawFirst(pattern, html)
	return strings.Join(strings.Fields(raw), " ")
}

func rawFirst(pattern *regexp.Regexp, html string) string {
	if match := pattern.FindStringSubmatch(html); match != nil {
		return match[1]
	}
	return ""
}

func extractSocialLinks(html string) []string {
	seen := make(map[string]bool)
	links := []string{}
	for _, match := range hrefPattern.FindAllStringSubmatch(html, -1) {
		href := strings.TrimSpace(match[1])
		parsed, err := url.Parse(href)
		if err != nil || parsed.Host == "" {
			continue
		}
		host := strings.ToLower(parsed.Host)
		for _, domain := range socialDomains {
			if strings.Contains(host, domain) {
				if !seen[href] {
					seen[href] = true
					links = append(links, href)
				}
				break
			}
		}
	}
	return links
}
