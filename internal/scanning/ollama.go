package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Scanner interface using a local Ollama server.
// Vision models with good OCR (qwen2.5vl, llava:1.6) work best.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5vl"
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ScanText transcribes the receipt image
func (o *Ollama) ScanText(imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.client.Timeout)
	defer cancel()

	png, err := toPNG(imageData, contentType)
	if err != nil {
		return "", err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are a careful OCR engine. You copy text from images exactly as printed.",
			},
			{
				Role:    "user",
				Content: transcribePrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(png)},
			},
		},
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return cleanTranscript(chatResp.Message.Content)
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
