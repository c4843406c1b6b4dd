package scanning

import (
	"context"
	"errors"
)

var (
	// ErrUnreadableImage is returned when an upload cannot be decoded as an image
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrMalformedResponse is returned when a backend reply does not have the expected shape
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoLabels is returned when label detection finds nothing in the image
	ErrNoLabels = errors.New("no labels detected")
	// ErrNoText is returned when document text detection finds no text
	ErrNoText = errors.New("no text detected")
)

// Image is an upload prepared for the backends
type Image struct {
	Data     []byte
	MIMEType string
}

// DetectedLabel is one label detected in an image, with its score in [0, 1]
type DetectedLabel struct {
	Description string
	Score       float64
}

// Recognizer is a structured OCR and label detection backend
type Recognizer interface {
	// DetectLabels returns the labels found in the image, highest score first
	DetectLabels(ctx context.Context, img Image) ([]DetectedLabel, error)
	// DetectDocumentText returns the full text of a document image
	DetectDocumentText(ctx context.Context, img Image) (string, error)
	// Close releases the backend's resources
	Close() error
}

// Generator is a generative vision-language backend
type Generator interface {
	// Generate answers prompt about the image and returns the raw reply text
	Generate(ctx context.Context, img Image, prompt string) (string, error)
	// Close releases the backend's resources
	Close() error
}
