package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
)

const anthropicVersion = "2023-06-01"

// Client implements the Service interface with multiple provider support
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new LLM client with the given configuration. The
// configuration is not validated until Configure is called.
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configure validates and applies a provider configuration, filling in the
// provider's default model and endpoint.
func (c *Client) Configure(config Config) error {
	if config.Provider == "" {
		return errors.New(errors.ErrTypeConfig, "provider is required")
	}

	switch config.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		if config.APIKey == "" {
			return errors.Newf(errors.ErrTypeConfig, "API key is required for %s provider", config.Provider)
		}
	case ProviderOllama:
	default:
		return errors.Newf(errors.ErrTypeConfig, "unsupported provider: %s", config.Provider)
	}

	if config.Model == "" {
		config.Model = DefaultModel(config.Provider)
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL(config.Provider)
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}

	if config.Timeout > 0 {
		c.httpClient.Timeout = config.Timeout
	}

	c.config = config

	return nil
}

// Complete sends req to the configured provider and returns the trimmed text
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.config.Provider == "" || c.config.BaseURL == "" {
		return nil, errors.New(errors.ErrTypeConfig, "LLM client not configured")
	}

	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var (
		text string
		err  error
	)

	switch c.config.Provider {
	case ProviderGemini:
		text, err = c.completeGemini(ctx, req, maxTokens)
	case ProviderOpenAI:
		text, err = c.completeOpenAI(ctx, req, maxTokens)
	case ProviderAnthropic:
		text, err = c.completeAnthropic(ctx, req, maxTokens)
	case ProviderOllama:
		text, err = c.completeOllama(ctx, req, maxTokens)
	default:
		return nil, errors.Newf(errors.ErrTypeConfig, "unsupported provider: %s", c.config.Provider)
	}

	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.Newf(errors.ErrTypeModel, "empty completion from %s", c.config.Provider)
	}

	// prompts carry schema and sample rows; only log them at debug level
	if log := logging.WithField("provider", c.config.Provider); log.IsDebug() {
		log.WithFields(map[string]any{
			"prompt":     req.Prompt,
			"completion": text,
		}).Debug("Completion received")
	}

	return &CompletionResponse{
		Text:     text,
		Provider: c.config.Provider,
		Model:    c.config.Model,
	}, nil
}

// Gemini API structures
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) completeGemini(ctx context.Context, req CompletionRequest, maxTokens int) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.config.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, url.PathEscape(c.config.Model))
	headers := map[string]string{"x-goog-api-key": c.config.APIKey}

	var response geminiResponse
	if err := c.post(ctx, endpoint, headers, body, &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", errors.Newf(errors.ErrTypeModel, "Gemini API error: %s", response.Error.Message)
	}

	if len(response.Candidates) == 0 {
		return "", errors.New(errors.ErrTypeModel, "no response from Gemini")
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String(), nil
}

// OpenAI API structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) completeOpenAI(ctx context.Context, req CompletionRequest, maxTokens int) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}

	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   maxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + c.config.APIKey}

	var response openAIResponse
	if err := c.post(ctx, c.config.BaseURL+"/chat/completions", headers, body, &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", errors.Newf(errors.ErrTypeModel, "OpenAI API error: %s", response.Error.Message)
	}

	if len(response.Choices) == 0 {
		return "", errors.New(errors.ErrTypeModel, "no response from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) completeAnthropic(ctx context.Context, req CompletionRequest, maxTokens int) (string, error) {
	body := anthropicRequest{
		Model:       c.config.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: c.config.Temperature,
	}

	headers := map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var response anthropicResponse
	if err := c.post(ctx, c.config.BaseURL+"/messages", headers, body, &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", errors.Newf(errors.ErrTypeModel, "Anthropic API error: %s", response.Error.Message)
	}

	var sb strings.Builder

	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", errors.New(errors.ErrTypeModel, "no response from Anthropic")
	}

	return sb.String(), nil
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) completeOllama(ctx context.Context, req CompletionRequest, maxTokens int) (string, error) {
	body := ollamaRequest{
		Model:  c.config.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.config.Temperature,
			NumPredict:  maxTokens,
		},
	}

	var response ollamaResponse
	if err := c.post(ctx, c.config.BaseURL+"/api/generate", nil, body, &response); err != nil {
		return "", err
	}

	if response.Error != "" {
		return "", errors.Newf(errors.ErrTypeModel, "Ollama API error: %s", response.Error)
	}

	return response.Response, nil
}

// apiError covers the error object shape shared by the hosted providers
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// post sends a JSON request and decodes a JSON response into out. Transport
// failures are connectivity errors; non-2xx answers are model errors.
func (c *Client) post(ctx context.Context, endpoint string, headers map[string]string, reqBody, out any) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTypeConnectivity, "failed to reach %s", c.config.Provider)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConnectivity, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf(errors.ErrTypeModel, "%s API request failed with status %d: %s",
			c.config.Provider, resp.StatusCode, errorMessage(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, errors.ErrTypeModel, "failed to parse %s response", c.config.Provider)
	}

	return nil
}

// errorMessage extracts {"error": {"message": ...}} or {"error": "..."} from
// a failed response, falling back to the raw body.
func errorMessage(body []byte) string {
	var nested struct {
		Error apiError `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}

	return strings.TrimSpace(string(body))
}
