package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
)

const (
	defaultEndpoint   = "https://api.openai.com/v1/chat/completions"
	maxPromptTextLen  = 12000
	extractorToolName = "extract_companies"
)

var systemPrompt = strings.Join([]string{
	"You are an obsessive consumer venture capitalist combing through newsletters.",
	"Read the ENTIRE email carefully (headers, intros, body, footers) and extract every NEW CONSUMER COMPANY worth investigating.",
	"Prefer recall: if a company might be relevant but you are not fully sure, include it with LOW confidence (0.2-0.4) and still cite evidence.",
	"Do not fabricate details; every company you return must be explicitly mentioned in the email.",
	"Focus on consumer products/services (b2c, creator tools, social, marketplaces, commerce, consumer AI, etc.).",
	"Sponsored blurbs count if they describe a consumer product - extract them with lower confidence.",
	"Ignore press about public companies, large incumbents, or pure funding recaps unless a new consumer startup is involved.",
	"Whenever you surface a company, capture specific evidence snippets (quotes) from the email proving the insight.",
	"Think like a skeptical investor: highlight why this company is noteworthy (launch, traction, funding, notable founder, etc.).",
	"Return precise, concise data.",
}, " ")

// CompanyCandidate is one company mention returned by the extraction call.
type CompanyCandidate struct {
	Name           string    `json:"name"`
	HomepageURL    string    `json:"homepage_url,omitempty"`
	AltDomains     []string  `json:"alt_domains,omitempty"`
	OneLineSummary string    `json:"one_line_summary"`
	Category       string    `json:"category,omitempty"`
	Stage          string    `json:"stage,omitempty"`
	Location       string    `json:"location,omitempty"`
	KeySignals     []string  `json:"key_signals,omitempty"`
	SourceEmailIDs []string  `json:"source_email_ids,omitempty"`
	SourceSnippets []Snippet `json:"source_snippets,omitempty"`
	Confidence     float64   `json:"confidence"`
}

// Snippet is an evidence quote from the email.
type Snippet struct {
	Quote string `json:"quote"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// LinkContext is pre-fetched metadata for a link included in the prompt.
type LinkContext struct {
	URL         string
	Title       string
	Description string
}

// Usage mirrors the token accounting reported by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is the outcome of one extraction call.
type Result struct {
	Companies []CompanyCandidate
	CostUSD   float64
}

// Client calls the chat completions API with a forced tool call.
type Client struct {
	apiKey        string
	model         string
	inputRateUSD  float64
	outputRateUSD float64
	endpoint      string
	httpClient    *http.Client
}

// NewClient creates an extraction client. Rates are USD per token.
func NewClient(apiKey, model string, inputRateUSD, outputRateUSD float64) *Client {
	return &Client{
		apiKey:        apiKey,
		model:         model,
		inputRateUSD:  inputRateUSD,
		outputRateUSD: outputRateUSD,
		endpoint:      defaultEndpoint,
		httpClient:    &http.Client{},
	}
}

// SetEndpoint overrides the API endpoint, used by tests.
func (c *Client) SetEndpoint(url string) {
	c.endpoint = url
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools"`
	ToolChoice  toolChoice    `json:"tool_choice"`
}

type toolDef struct {
	Type     string          `json:"type"`
	Function json.RawMessage `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Extract asks the model for company mentions in the normalized email
// text. The returned cost is estimated from reported usage, falling back
// to a chars/4 token approximation.
func (c *Client) Extract(ctx context.Context, emailID, normalizedText string, links []LinkContext) (*Result, error) {
	userPrompt := buildUserPrompt(emailID, normalizedText, links)

	choice := toolChoice{Type: "function"}
	choice.Function.Name = extractorToolName

	payload := chatRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Tools:      []toolDef{{Type: "function", Function: json.RawMessage(extractCompaniesSchema)}},
		ToolChoice: choice,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	rawArguments := ""
	if len(parsed.Choices) > 0 && len(parsed.Choices[0].Message.ToolCalls) > 0 {
		rawArguments = parsed.Choices[0].Message.ToolCalls[0].Function.Arguments
	}

	var extracted struct {
		Companies []CompanyCandidate `json:"companies"`
	}
	if rawArguments != "" {
		// Malformed tool arguments yield an empty list, not a failure.
		_ = json.Unmarshal([]byte(rawArguments), &extracted)
	}

	cost := c.EstimateCost(parsed.Usage, len(systemPrompt)+len(userPrompt), len(rawArguments))
	return &Result{Companies: extracted.Companies, CostUSD: cost}, nil
}

// EstimateCost prices a call from reported usage, approximating tokens
// as chars/4 when usage is absent.
func (c *Client) EstimateCost(usage *Usage, promptChars, completionChars int) float64 {
	promptTokens := approximateTokens(promptChars)
	completionTokens := approximateTokens(completionChars)
	if usage != nil {
		if usage.PromptTokens > 0 {
			promptTokens = usage.PromptTokens
		}
		if usage.CompletionTokens > 0 {
			completionTokens = usage.CompletionTokens
		}
	}
	total := float64(promptTokens)*c.inputRateUSD + float64(completionTokens)*c.outputRateUSD
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	return math.Round(total*1e6) / 1e6
}

func buildUserPrompt(emailID, normalizedText string, links []LinkContext) string {
	text := normalizedText
	if len(text) > maxPromptTextLen {
		text = text[:maxPromptTextLen]
	}

	snapshotLines := make([]string, 0, len(links))
	for _, link := range links {
		title := link.Title
		if title == "" {
			title = "Unknown"
		}
		meta := strings.TrimSpace(strings.Join(nonEmpty(link.Title, link.Description), " - "))
		if meta == "" {
			meta = "None"
		}
		snapshotLines = append(snapshotLines, fmt.Sprintf("URL: %s\nTITLE: %s\nMETA: %s", link.URL, title, meta))
	}
	snapshots := strings.Join(snapshotLines, "\n\n")
	if snapshots == "" {
		snapshots = "None"
	}

	return fmt.Sprintf(`NEWSLETTER_EMAIL_ID: %s
NEWSLETTER_TEXT (normalized):
%s

LINK SNAPSHOTS:
%s

Task: Extract relevant CONSUMER STARTUPS. Respect the rules above.`, emailID, text, snapshots)
}

func approximateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
