// Package llm is the client for the local language model service. Everything
// generative in the agent flows through the Service interface so components
// can take a handle instead of constructing their own client.
package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service is the text-generation contract the agent depends on.
type Service interface {
	// Generate completes a prompt and returns the full response text.
	Generate(prompt string, maxTokens int, temperature float64) (string, error)
	// GenerateStream completes a prompt, invoking onToken for each token as
	// it arrives. It blocks until the stream ends or errors.
	GenerateStream(prompt string, maxTokens int, temperature float64, onToken func(string)) (string, error)
	// Chat sends a conversation. With jsonMode the model is constrained to
	// emit a parseable JSON object; a malformed reply is an error.
	Chat(messages []Message, temperature float64, jsonMode bool) (string, error)
}

// OllamaClient implements Service against the Ollama HTTP API.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a client targeting the given Ollama instance and model.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  generateOptions `json:"options"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

func (c *OllamaClient) post(path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Generate completes a prompt without streaming.
func (c *OllamaClient) Generate(prompt string, maxTokens int, temperature float64) (string, error) {
	resp, err := c.post("/api/generate", generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return result.Response, nil
}

// GenerateStream completes a prompt, invoking onToken per token. The
// concatenated response is returned once the stream finishes.
func (c *OllamaClient) GenerateStream(prompt string, maxTokens int, temperature float64, onToken func(string)) (string, error) {
	resp, err := c.post("/api/generate", generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  true,
		Options: generateOptions{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return full.String(), fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			if onToken != nil {
				onToken(chunk.Response)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}

// Chat sends a conversation to Ollama and returns the assistant's response.
// With jsonMode the response is validated to be a JSON object.
func (c *OllamaClient) Chat(messages []Message, temperature float64, jsonMode bool) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  generateOptions{Temperature: temperature},
	}
	if jsonMode {
		req.Format = "json"
	}

	resp, err := c.post("/api/chat", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	content := result.Message.Content
	if jsonMode && !json.Valid([]byte(content)) {
		return "", fmt.Errorf("model did not return valid JSON")
	}
	return content, nil
}
