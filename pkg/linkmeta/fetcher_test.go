package linkmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>
  Acme -
  Widgets for everyone
</title>
<meta name="description" content="The best widgets on the market">
<link rel="canonical" href="https://acme.example/home">
</head>
<body>
<a href="https://twitter.com/acmehq">Twitter</a>
<a href="https://twitter.com/acmehq">Twitter again</a>
<a href="https://www.linkedin.com/company/acme">LinkedIn</a>
<a href="https://news.example/article">Press</a>
</body>
</html>`

func TestFetch_ScrapesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, 0)
	meta, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, server.URL, meta.URL)
	assert.Equal(t, "Acme - Widgets for everyone", meta.Title)
	assert.Equal(t, "The best widgets on the market", meta.Description)
	assert.Equal(t, "https://acme.example/home", meta.CanonicalURL)
	assert.Equal(t, []string{
		"https://twitter.com/acmehq",
		"https://www.linkedin.com/company/acme",
	}, meta.SocialLinks)
	assert.False(t, meta.FetchedAt.IsZero())
}

func TestFetch_OGDescriptionProperty(t *testing.T) {
	page := `<meta property="og:description" content="Launching soon">`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, 0)
	meta, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Launching soon", meta.Description)
}

func TestFetch_TruncatesAtByteCap(t *testing.T) {
	head := "<title>Kept</title>"
	page := head + strings.Repeat("x", 4096) + `<meta name="description" content="dropped">`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, int64(len(head)+100))
	meta, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Kept", meta.Title)
	assert.Empty(t, meta.Description)
}

func TestFetch_NonSuccessStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, 0)
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestFetch_TimeoutFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	fetcher := NewFetcher(20*time.Millisecond, 0)
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}
