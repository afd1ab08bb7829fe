// Package llm adapts an OpenAI-chat-completions-shaped client — pointed
// at a local or loopback inference server rather than a cloud endpoint —
// to the pipeline's LLM capability contract.
package llm

import (
	"context"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/halcyon-labs/vassist/internal/proxy"
)

// DefaultBaseURL is the default local/loopback inference endpoint.
const DefaultBaseURL = "http://127.0.0.1:8080/v1"

// NewHTTPClient builds the transport for the OpenAI client: direct, or
// through a SOCKS5 proxy when socksAddr is non-empty.
func NewHTTPClient(socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return http.DefaultClient, nil
	}
	return proxy.NewSocksClient(socksAddr)
}

// Client implements pipeline.LLM on top of openai-go's streaming chat
// completions API.
type Client struct {
	api          openai.Client
	model        openai.ChatModel
	systemPrompt string
}

// New builds a Client. apiKey may be empty for local servers that don't
// check it; baseURL defaults to DefaultBaseURL when empty.
func New(httpClient *http.Client, apiKey, baseURL, systemPrompt string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Client{
		api:          openai.NewClient(opts...),
		systemPrompt: systemPrompt,
	}
}

// Init records the model name (modelPath here names a served model, not
// a filesystem path). An empty name leaves the previous selection intact.
func (c *Client) Init(modelPath string) bool {
	if modelPath != "" {
		c.model = openai.ChatModel(modelPath)
	}
	return true
}

// GenerateStream drives the chat-completions streaming endpoint, forwarding
// each delta's content to onChunk as it arrives.
func (c *Client) GenerateStream(prompt string, onChunk func(chunk string)) bool {
	ctx := context.Background()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	})

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta != "" {
			onChunk(delta)
		}
	}

	return stream.Err() == nil
}

func (c *Client) Shutdown() {}
