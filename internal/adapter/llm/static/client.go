// Package static provides an offline-friendly LLM client. The defended
// model always refuses, and the judge always answers SAFE, so battles
// can run end to end without network access or an API key.
package static

import "context"

// Client is a canned responder implementing the completion and judge ports.
type Client struct{}

// NewClient constructs a stubbed client.
func NewClient() *Client {
	return &Client{}
}

// Complete returns a deterministic refusal.
func (c *Client) Complete(ctx context.Context, systemText, userText string) (string, error) {
	return "I cannot help with that request.", nil
}

// Judge returns a deterministic SAFE verdict.
func (c *Client) Judge(ctx context.Context, instruction string) (string, error) {
	return "SAFE", nil
}

// Close cleans up resources.
func (c *Client) Close() error {
	return nil
}
