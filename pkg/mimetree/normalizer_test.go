package mimetree

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestNormalize_HTMLAndText(t *testing.T) {
	payload := &Part{
		MimeType: "multipart/alternative",
		Parts: []*Part{
			{MimeType: "text/plain", Data: encode("plain body")},
			{MimeType: "text/html", Data: encode(`<p>html <b>body</b></p>`)},
		},
	}

	got := Normalize(payload)
	assert.Equal(t, "plain body", got.Text)
	assert.Equal(t, `<p>html <b>body</b></p>`, got.HTML)
}

func TestNormalize_HTMLOnlyDerivesText(t *testing.T) {
	payload := &Part{
		MimeType: "text/html",
		Data:     encode(`<div>Hello   <span>world</span></div>`),
	}

	got := Normalize(payload)
	assert.Equal(t, "Hello world", got.Text)
}

func TestNormalize_NilPayload(t *testing.T) {
	got := Normalize(nil)
	assert.Empty(t, got.HTML)
	assert.Empty(t, got.Text)
	assert.Empty(t, got.Links)
}

func TestNormalize_LinksOrderedDedupedNoMailto(t *testing.T) {
	html := `<a href="https://a.example/one">a</a>` +
		`<a href="mailto:hi@example.com">mail</a>` +
		`<a href="https://b.example/two">b</a>` +
		`<a href="https://a.example/one">again</a>`
	payload := &Part{MimeType: "text/html", Data: encode(html)}

	got := Normalize(payload)
	assert.Equal(t, []string{"https://a.example/one", "https://b.example/two"}, got.Links)
}

func TestNormalize_Deterministic(t *testing.T) {
	payload := &Part{MimeType: "text/html", Data: encode(`<a href="https://x.example">x</a>`)}
	first := Normalize(payload)
	second := Normalize(payload)
	assert.Equal(t, first, second)
}

func TestDecodeBase64URL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"url alphabet", base64.RawURLEncoding.EncodeToString([]byte("a?b>c")), "a?b>c"},
		{"missing padding", "aGVsbG8", "hello"},
		{"invalid", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeBase64URL(tt.input))
		})
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Launch day is here", StripHTML("<h1>Launch</h1> day\n is <i>here</i>"))
}
