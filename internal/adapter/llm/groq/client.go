package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	llmhttp "github.com/jmorrow/prompt-arena/internal/adapter/llm/http"
)

const (
	providerName = "groq"

	defaultBaseURL   = "https://api.groq.com/openai"
	defaultModel     = "llama-3.3-70b-versatile"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024
)

// Client is an HTTP client for Groq's OpenAI-compatible chat API.
// All calls run at temperature 0 so verdicts stay reproducible.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	logger    llmhttp.Logger
	retry     llmhttp.RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.client.Timeout = timeout }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the request/response logger.
func WithLogger(logger llmhttp.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg llmhttp.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a new Groq client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		model:     defaultModel,
		baseURL:   defaultBaseURL,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: defaultTimeout},
		logger:    llmhttp.NewDefaultLogger(llmhttp.LogLevelError, llmhttp.LogFormatHuman, true),
		retry:     llmhttp.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the system and user text to the model and returns the
// assistant's reply.
func (c *Client) Complete(ctx context.Context, systemText, userText string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemText},
		{Role: "user", Content: userText},
	}
	return c.call(ctx, messages)
}

// Judge sends a single-turn instruction to the model and returns its
// verdict text.
func (c *Client) Judge(ctx context.Context, instruction string) (string, error) {
	messages := []Message{
		{Role: "user", Content: instruction},
	}
	return c.call(ctx, messages)
}

func (c *Client) call(ctx context.Context, messages []Message) (string, error) {
	reqBody := ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.0,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	promptChars := 0
	for _, m := range messages {
		promptChars += len(m.Content)
	}
	c.logger.LogRequest(ctx, llmhttp.RequestLog{
		Provider:    providerName,
		Model:       c.model,
		Timestamp:   time.Now(),
		PromptChars: promptChars,
		APIKey:      c.apiKey,
	})

	url := c.baseURL + "/v1/chat/completions"
	start := time.Now()

	var text string
	operation := func() error {
		// Rebuild the request each attempt so the body is readable again.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return llmhttp.NewTimeoutError(providerName, "request timed out")
			}
			return llmhttp.NewTimeoutError(providerName, err.Error())
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleErrorResponse(resp.StatusCode, body)
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}

		c.logger.LogResponse(ctx, llmhttp.ResponseLog{
			Provider:     providerName,
			Model:        chatResp.Model,
			Timestamp:    time.Now(),
			Duration:     time.Since(start),
			TokensIn:     chatResp.Usage.PromptTokens,
			TokensOut:    chatResp.Usage.CompletionTokens,
			StatusCode:   resp.StatusCode,
			FinishReason: chatResp.Choices[0].FinishReason,
		})

		text = chatResp.Choices[0].Message.Content
		return nil
	}

	if err := llmhttp.RetryWithBackoff(ctx, operation, c.retry); err != nil {
		errLog := llmhttp.ErrorLog{
			Provider:  providerName,
			Model:     c.model,
			Timestamp: time.Now(),
			Duration:  time.Since(start),
			Error:     err,
		}
		if llmErr, ok := err.(*llmhttp.Error); ok {
			errLog.ErrorType = llmErr.Type
			errLog.StatusCode = llmErr.StatusCode
			errLog.Retryable = llmErr.Retryable
		}
		c.logger.LogError(ctx, errLog)
		return "", err
	}

	return text, nil
}

// handleErrorResponse converts HTTP error responses to typed errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(providerName, message)
	case http.StatusNotFound:
		return llmhttp.NewModelNotFoundError(providerName, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(providerName, message)
	case http.StatusBadRequest:
		return llmhttp.NewInvalidRequestError(providerName, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return llmhttp.NewServiceUnavailableError(providerName, message)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  false,
			Provider:   providerName,
		}
	}
}

// Close cleans up resources.
func (c *Client) Close() error {
	return nil
}
