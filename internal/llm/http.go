package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cowork-forge/forge/internal/flog"
	"github.com/cowork-forge/forge/internal/forgeerr"
)

// HTTPClient is a Client backed by an OpenAI-compatible chat-completions
// endpoint, grounded on the teacher's internal/perception/client_openai.go
// wire shape. forgeconfig.LLMConfig names a single base_url/api_key/
// model_name triple rather than one of the teacher's many provider-specific
// clients, so HTTPClient speaks the one wire format nearly every provider
// in that package (OpenAI, Z.AI, OpenRouter, xAI) accepts behind that
// shape, instead of picking one provider SDK to depend on.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient from forge's LLM config.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Delta   *chatMessage `json:"delta,omitempty"`
	Message *chatMessage `json:"message,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends prompt with no system message.
func (c *HTTPClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem issues a single non-streaming chat-completion call.
func (c *HTTPClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := flog.Get(flog.CategoryStage)
	messages := systemAndUser(systemPrompt, userPrompt)
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", forgeerr.Wrap(forgeerr.Serialize, "marshaling chat request", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", forgeerr.Wrap(forgeerr.LlmTimeout, "reading LLM response body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", forgeerr.New(forgeerr.LlmTimeout, fmt.Sprintf("LLM request failed with status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", forgeerr.Wrap(forgeerr.Serialize, "parsing chat response", err)
	}
	if parsed.Error != nil {
		return "", forgeerr.New(forgeerr.LlmTimeout, "LLM API error: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", forgeerr.New(forgeerr.LlmTimeout, "LLM returned no completion")
	}
	log.Debugw("completion received", "model", c.model, "response_len", len(parsed.Choices[0].Message.Content))
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// StreamComplete issues a streaming chat-completion call over SSE,
// invoking onChunk for each content delta plus a final empty chunk.
func (c *HTTPClient) StreamComplete(ctx context.Context, systemPrompt, userPrompt string, onChunk func(Chunk) error) error {
	messages := systemAndUser(systemPrompt, userPrompt)
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0.2, Stream: true})
	if err != nil {
		return forgeerr.Wrap(forgeerr.Serialize, "marshaling streaming chat request", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return forgeerr.New(forgeerr.LlmTimeout, fmt.Sprintf("LLM streaming request failed with status %d: %s", resp.StatusCode, string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return onChunk(Chunk{Final: true})
		}
		var parsed chatResponse
		if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
			continue // skip malformed keep-alive frames
		}
		if len(parsed.Choices) == 0 || parsed.Choices[0].Delta == nil {
			continue
		}
		if err := onChunk(Chunk{Content: parsed.Choices[0].Delta.Content}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return forgeerr.Wrap(forgeerr.LlmTimeout, "reading LLM stream", err)
	}
	return onChunk(Chunk{Final: true})
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.LlmTimeout, "building LLM request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.LlmTimeout, "calling LLM endpoint", err)
	}
	return resp, nil
}

func systemAndUser(systemPrompt, userPrompt string) []chatMessage {
	if systemPrompt == "" {
		return []chatMessage{{Role: "user", Content: userPrompt}}
	}
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}
