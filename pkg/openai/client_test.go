package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInputRate  = 0.15 / 1_000_000
	testOutputRate = 0.60 / 1_000_000
)

func newTestClient(endpoint string) *Client {
	c := NewClient("test-key", "test-model", testInputRate, testOutputRate)
	if endpoint != "" {
		c.SetEndpoint(endpoint)
	}
	return c
}

func toolCallResponse(arguments string, usage *Usage) map[string]interface{} {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"tool_calls": []map[string]interface{}{
						{
							"function": map[string]interface{}{
								"name":      "extract_companies",
								"arguments": arguments,
							},
						},
					},
				},
			},
		},
	}
	if usage != nil {
		resp["usage"] = usage
	}
	return resp
}

func TestExtract_ParsesCompanies(t *testing.T) {
	arguments := `{"companies":[{"name":"Acme","one_line_summary":"Widgets for consumers","confidence":0.8}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		json.NewEncoder(w).Encode(toolCallResponse(arguments, &Usage{PromptTokens: 1000, CompletionTokens: 200}))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Extract(context.Background(), "msg-1", "Newsletter text mentioning Acme", nil)
	require.NoError(t, err)

	require.Len(t, result.Companies, 1)
	assert.Equal(t, "Acme", result.Companies[0].Name)
	assert.Equal(t, "Widgets for consumers", result.Companies[0].OneLineSummary)
	assert.InDelta(t, 0.8, result.Companies[0].Confidence, 1e-9)
	assert.InDelta(t, 1000*testInputRate+200*testOutputRate, result.CostUSD, 1e-9)
}

func TestExtract_MalformedArgumentsYieldEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(toolCallResponse("{not json", nil))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Extract(context.Background(), "msg-1", "text", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Companies)
}

func TestExtract_HTTPErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Extract(context.Background(), "msg-1", "text", nil)
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	client := newTestClient("")

	t.Run("uses reported usage", func(t *testing.T) {
		cost := client.EstimateCost(&Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, 0, 0)
		assert.InDelta(t, 0.15+0.60, cost, 1e-9)
	})

	t.Run("falls back to chars over four", func(t *testing.T) {
		// 4000 prompt chars -> 1000 tokens, 400 completion chars -> 100 tokens
		cost := client.EstimateCost(nil, 4000, 400)
		assert.InDelta(t, 1000*testInputRate+100*testOutputRate, cost, 1e-9)
	})

	t.Run("zero everything is free", func(t *testing.T) {
		assert.Equal(t, 0.0, client.EstimateCost(nil, 0, 0))
	})
}
