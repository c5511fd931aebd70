// Package embedding converts batches of text into fixed-dimension vectors via
// an OpenAI-compatible embedding service.
package embedding

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI-compatible API client used for embedding requests.
// Any service speaking the {model, input} / {data: [{embedding}]} wire shape
// works via a custom base URL.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates an embedding API client. baseURL may be empty for the
// default OpenAI endpoint; model may be empty for DefaultModel.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key not set")
	}
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{client: &client, model: model}, nil
}

// Model returns the embedding model name sent with each request.
func (c *Client) Model() string {
	return c.model
}
