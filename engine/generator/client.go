package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/omniql-engine/chatdb/engine/errors"
)

// Providers a Client can talk to
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultTimeout       = 60 * time.Second
)

// Config selects and authenticates the model provider
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// Client generates queries through a hosted chat model
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient fills provider defaults and checks the config
func NewClient(config Config) (*Client, error) {
	config.Provider = strings.ToLower(strings.TrimSpace(config.Provider))
	switch config.Provider {
	case ProviderOpenAI:
		if config.BaseURL == "" {
			config.BaseURL = defaultOpenAIBaseURL
		}
		if config.Model == "" {
			config.Model = defaultOpenAIModel
		}
	case ProviderGemini:
		if config.BaseURL == "" {
			config.BaseURL = defaultGeminiBaseURL
		}
		if config.Model == "" {
			config.Model = defaultGeminiModel
		}
	default:
		return nil, errors.Newf(errors.KindConfig, "unsupported generator provider %q", config.Provider).
			WithSuggestion("use openai or gemini")
	}
	if config.APIKey == "" {
		return nil, errors.Newf(errors.KindConfig, "%s provider requires an API key", config.Provider)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.config
}

// Generate asks the model for a query and extracts it from the reply
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	prompt := BuildPrompt(req)

	var reply string
	var err error
	switch c.config.Provider {
	case ProviderGemini:
		reply, err = c.makeGeminiRequest(ctx, prompt)
	default:
		reply, err = c.makeOpenAIRequest(ctx, prompt)
	}
	if err != nil {
		return "", errors.Wrapf(err, errors.KindGenerationFailed, "%s request failed", c.config.Provider)
	}
	return ExtractQuery(reply, ReplyKey(req.Target))
}

// ============================================================================
// OPENAI
// ============================================================================

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) makeOpenAIRequest(ctx context.Context, prompt string) (string, error) {
	body := openAIRequest{
		Model:          c.config.Model,
		Messages:       []openAIMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + c.config.APIKey}
	if err := c.post(ctx, c.config.BaseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ============================================================================
// GEMINI
// ============================================================================

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGeneration struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) makeGeminiRequest(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGeneration{ResponseMimeType: "application/json"},
	}

	var resp geminiResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	headers := map[string]string{"x-goog-api-key": c.config.APIKey}
	if err := c.post(ctx, url, headers, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
