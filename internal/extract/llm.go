package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vtex/migrator/internal/config"
	"vtex/migrator/internal/domain"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

const llmSystemPrompt = `You extract e-commerce product data from HTML.
Respond with a single JSON object, nothing else, with this shape:
{
  "categories": [{"name": "...", "level": 0}],
  "brand": {"name": "..."},
  "product": {"name": "...", "description": "...", "short_description": "...", "product_id": "..."},
  "skus": [{"name": "...", "ean": "...", "ref_id": "...", "sku_id": "...", "price": 0.0, "list_price": 0.0}],
  "images": ["..."],
  "specifications": [{"name": "...", "value": "..."}]
}
Categories are the breadcrumb path from department to leaf, excluding the
product itself. Prices are numbers in the page currency. Use empty
strings and empty arrays for anything the page does not show. Never
invent values.`

// Keeps request payloads within the model context window. Product data
// almost always sits in the first part of the document.
const maxPageBytes = 120_000

// LLMExtractor sends the page to an OpenAI-compatible chat-completions
// endpoint and parses the structured reply. Gated by llm.enabled; the
// container wraps it with the heuristic fallback.
type LLMExtractor struct {
	httpClient *resty.Client
	cfg        config.LLMConfig
}

func NewLLMExtractor(cfg config.LLMConfig) *LLMExtractor {
	httpClient := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(3*time.Second).
		SetRetryMaxWaitTime(30*time.Second).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &LLMExtractor{httpClient: httpClient, cfg: cfg}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *LLMExtractor) Extract(ctx context.Context, html, pageURL string) (*domain.ProductRecord, error) {
	system := llmSystemPrompt
	if e.cfg.CustomInstructions != "" {
		system += "\n\nSite-specific instructions:\n" + e.cfg.CustomInstructions
	}
	if len(html) > maxPageBytes {
		html = html[:maxPageBytes]
	}

	request := chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Page URL: %s\n\n%s", pageURL, html)},
		},
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}

	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		Post(e.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("llm request for %s: %w", pageURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("llm request for %s: HTTP %d", pageURL, resp.StatusCode())
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Bytes(), &parsed); err != nil {
		return nil, fmt.Errorf("llm response for %s: %w", pageURL, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("llm error for %s: %s", pageURL, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm response for %s: no choices", pageURL)
	}

	record := &domain.ProductRecord{}
	content := stripCodeFence(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), record); err != nil {
		return nil, fmt.Errorf("llm content for %s is not valid JSON: %w", pageURL, err)
	}
	record.URL = pageURL

	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	log.Debugf("LLM extracted %q with %d SKUs from %s", record.Product.Name, len(record.Skus), pageURL)
	return record, nil
}

// stripCodeFence tolerates models that wrap JSON in markdown fences even
// in JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
