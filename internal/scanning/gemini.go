package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the model used when none is configured
const DefaultGeminiModel = "gemini-1.5-flash"

// generativeModel is the part of *genai.GenerativeModel used here
type generativeModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini implements Generator using Google Gemini
type Gemini struct {
	client *genai.Client
	model  generativeModel
}

// NewGemini creates a new Gemini Generator instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// newGeminiWithModel creates a Gemini Generator around an existing model
func newGeminiWithModel(model generativeModel) *Gemini {
	return &Gemini{model: model}
}

// Generate sends the image and prompt to Gemini and returns the concatenated reply text
func (g *Gemini) Generate(ctx context.Context, img Image, prompt string) (string, error) {
	// genai.ImageData wants the format suffix ("png"), not the MIME type
	format := strings.TrimPrefix(img.MIMEType, "image/")
	if format == "" {
		format = "png"
	}

	resp, err := g.model.GenerateContent(ctx, genai.ImageData(format, img.Data), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response from gemini", ErrMalformedResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: gemini reply has no text", ErrMalformedResponse)
	}

	return text.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
