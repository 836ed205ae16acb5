package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Transcription should not be creative.
	model.SetTemperature(0)

	return &Gemini{
		client:  client,
		model:   model,
		timeout: 60 * time.Second,
	}, nil
}

// ScanText transcribes the receipt image
func (g *Gemini) ScanText(imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	png, err := toPNG(imageData, contentType)
	if err != nil {
		return "", err
	}

	// genai.ImageData takes the format suffix, not the MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", png),
		genai.Text(transcribePrompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	return cleanTranscript(b.String())
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
