package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const (
	featureLabels       = "LABEL_DETECTION"
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"

	defaultMaxLabels = 10
)

// Vision implements Recognizer using the Google Cloud Vision REST API
type Vision struct {
	service   *vision.Service
	maxLabels int64
}

// NewVision creates a Cloud Vision client. With no options the client uses
// Application Default Credentials, so construction fails when none are set up.
func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{
		service:   service,
		maxLabels: defaultMaxLabels,
	}, nil
}

// DetectLabels runs label detection and returns the labels highest score first
func (v *Vision) DetectLabels(ctx context.Context, img Image) ([]DetectedLabel, error) {
	resp, err := v.annotate(ctx, img, &vision.Feature{Type: featureLabels, MaxResults: v.maxLabels})
	if err != nil {
		return nil, err
	}

	labels := make([]DetectedLabel, 0, len(resp.LabelAnnotations))
	for _, annotation := range resp.LabelAnnotations {
		if annotation == nil || strings.TrimSpace(annotation.Description) == "" {
			continue
		}
		labels = append(labels, DetectedLabel{
			Description: annotation.Description,
			Score:       annotation.Score,
		})
	}
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	slices.SortStableFunc(labels, func(a, b DetectedLabel) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	return labels, nil
}

// DetectDocumentText runs dense document OCR and returns the full text
func (v *Vision) DetectDocumentText(ctx context.Context, img Image) (string, error) {
	resp, err := v.annotate(ctx, img, &vision.Feature{Type: featureDocumentText})
	if err != nil {
		return "", err
	}

	if resp.FullTextAnnotation == nil || strings.TrimSpace(resp.FullTextAnnotation.Text) == "" {
		return "", ErrNoText
	}
	return resp.FullTextAnnotation.Text, nil
}

func (v *Vision) annotate(ctx context.Context, img Image, feature *vision.Feature) (*vision.AnnotateImageResponse, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(img.Data)},
			Features: []*vision.Feature{feature},
		}},
	}

	batch, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calling vision API: %w", err)
	}

	if len(batch.Responses) == 0 || batch.Responses[0] == nil {
		return nil, fmt.Errorf("%w: vision returned no annotation", ErrMalformedResponse)
	}

	resp := batch.Responses[0]
	// Per-image failures come back in-band with a 200
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("vision API error: %s", resp.Error.Message)
	}

	return resp, nil
}

// Close is a no-op; the REST client holds no connections of its own
func (v *Vision) Close() error {
	return nil
}
