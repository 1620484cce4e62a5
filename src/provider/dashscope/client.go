// Package dashscope implements the llm.Provider contract against the Alibaba
// DashScope text-generation API (Qwen models) in its native request format.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pawmate/autoreply/src/llm"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	defaultTimeout = 30 * time.Second
)

var _ llm.Provider = (*Client)(nil)

// Config holds the settings for the DashScope backend.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a DashScope text-generation client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the DashScope backend.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dashscope_client", "provider", config.Name)

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Name returns the configured provider identifier.
func (c *Client) Name() string { return c.config.Name }

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool { return c.config.APIKey != "" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generationRequest struct {
	Model      string `json:"model"`
	Input      input  `json:"input"`
	Parameters params `json:"parameters"`
}

type input struct {
	Messages []message `json:"messages"`
}

type params struct {
	ResultFormat string  `json:"result_format"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

type generationResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Choices []struct {
			Message      message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if c.config.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}

	logger := c.logger.With("method", "Generate", "model", c.config.Model)

	messages := make([]message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, message{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		messages = append(messages, message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, message{Role: llm.RoleUser, Content: req.UserMessage})

	body, err := json.Marshal(generationRequest{
		Model: c.config.Model,
		Input: input{Messages: messages},
		Parameters: params{
			ResultFormat: "message",
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.BaseURL + "/services/aigc/text-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result generationResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// DashScope reports failures in-band via code/message alongside the
	// HTTP status.
	if resp.StatusCode != http.StatusOK || result.Code != "" {
		return nil, &llm.APIError{
			StatusCode: resp.StatusCode,
			Provider:   c.config.Name,
			Code:       result.Code,
			Message:    result.Message,
			RequestID:  result.RequestID,
		}
	}

	if len(result.Output.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}
	text := strings.TrimSpace(result.Output.Choices[0].Message.Content)
	if text == "" {
		return nil, llm.ErrEmptyResponse
	}

	logger.Debug("generation successful",
		"request_id", result.RequestID,
		"usage_total", result.Usage.TotalTokens)
	return &llm.GenerateResponse{
		Text:  text,
		Model: c.config.Model,
		Usage: llm.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}
