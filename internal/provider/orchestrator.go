// Package provider drives the primary/secondary backend pair behind every
// image flow. The primary backend is a structured OCR and label service; the
// secondary is a generative vision-language model that is only consulted when
// the primary is missing, reports a billing failure, or reads no text.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andi-frame/TeamName-KulkasKu/internal/extraction"
	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

const (
	flowIdentify = "identify"
	flowPredict  = "predict"
	flowReceipt  = "receipt"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type realTimeSource struct{}

func (realTimeSource) Now() time.Time {
	return time.Now()
}

// Availability records which backends were configured at startup. It is
// never modified after the orchestrator is built.
type Availability struct {
	Primary   bool
	Secondary bool
}

// Any reports whether at least one backend is configured
func (a Availability) Any() bool {
	return a.Primary || a.Secondary
}

// AnalysisResult is the outcome of one receipt analysis. A failed analysis
// has no items and a non-empty Error.
type AnalysisResult struct {
	Success           bool
	Items             []extraction.Item
	OverallConfidence float64
	Error             string
	ProcessingTime    time.Duration
}

// FormatProcessingTime renders the processing time in seconds with two decimals, e.g. "1.23s"
func (r AnalysisResult) FormatProcessingTime() string {
	return fmt.Sprintf("%.2fs", r.ProcessingTime.Seconds())
}

// Orchestrator runs each flow against the configured backends
type Orchestrator struct {
	primary      scanning.Recognizer
	secondary    scanning.Generator
	availability Availability
	metrics      *Metrics
	timeSource   TimeSource
}

// NewOrchestrator creates an orchestrator. A nil backend is treated as not configured.
func NewOrchestrator(primary scanning.Recognizer, secondary scanning.Generator, metrics *Metrics) *Orchestrator {
	return NewOrchestratorWithDeps(primary, secondary, metrics, realTimeSource{})
}

// NewOrchestratorWithDeps creates an orchestrator with a custom time source
func NewOrchestratorWithDeps(primary scanning.Recognizer, secondary scanning.Generator, metrics *Metrics, timeSource TimeSource) *Orchestrator {
	return &Orchestrator{
		primary:   primary,
		secondary: secondary,
		availability: Availability{
			Primary:   primary != nil,
			Secondary: secondary != nil,
		},
		metrics:    metrics,
		timeSource: timeSource,
	}
}

// Availability returns the backends configured at startup
func (o *Orchestrator) Availability() Availability {
	return o.availability
}

// IdentifyItem names the main object in a photo. The primary backend's top
// label wins; the secondary backend is asked only when the primary is missing
// or fails for billing reasons.
func (o *Orchestrator) IdentifyItem(ctx context.Context, data []byte, contentType string) (scanning.Identification, error) {
	start := o.timeSource.Now()
	result, err := o.identify(ctx, data, contentType)
	o.metrics.observe(flowIdentify, err == nil, o.timeSource.Now().Sub(start).Seconds())
	return result, err
}

func (o *Orchestrator) identify(ctx context.Context, data []byte, contentType string) (scanning.Identification, error) {
	img, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		return scanning.Identification{}, &Error{Kind: KindInputRejected, Err: err}
	}

	if !o.availability.Any() {
		return scanning.Identification{}, &Error{Kind: KindUnavailable, Err: ErrNoServiceAvailable}
	}

	if o.availability.Primary {
		labels, err := o.primary.DetectLabels(ctx, img)
		if err == nil && len(labels) == 0 {
			err = scanning.ErrNoLabels
		}
		if err == nil {
			o.metrics.attempt(flowIdentify, Primary, "success")
			top := topLabel(labels)
			slog.Info("identified item", "backend", Primary, "name", top.Description, "confidence", top.Score)
			return scanning.Identification{
				Name:       top.Description,
				Confidence: extraction.Clamp(top.Score),
			}, nil
		}

		berr := backendError(Primary, err)
		o.metrics.attempt(flowIdentify, Primary, berr.Kind.String())
		if !o.shouldFallBack(flowIdentify, berr) {
			return scanning.Identification{}, berr
		}
	}

	reply, err := o.secondary.Generate(ctx, img, scanning.IdentifyPrompt)
	if err != nil {
		berr := backendError(Secondary, err)
		o.metrics.attempt(flowIdentify, Secondary, berr.Kind.String())
		slog.Warn("secondary backend failed", "flow", flowIdentify, "kind", berr.Kind, "error", err)
		return scanning.Identification{}, berr
	}
	o.metrics.attempt(flowIdentify, Secondary, "success")

	result, err := scanning.ParseIdentification(reply)
	if err != nil {
		slog.Warn("using fallback identification", "error", err)
	}
	slog.Info("identified item", "backend", Secondary, "name", result.Name, "confidence", result.Confidence)
	return result, nil
}

// PredictItem estimates the condition and remaining shelf life of a food
// item. Only the secondary backend can answer this.
func (o *Orchestrator) PredictItem(ctx context.Context, data []byte, contentType string) (scanning.Prediction, error) {
	start := o.timeSource.Now()
	result, err := o.predict(ctx, data, contentType)
	o.metrics.observe(flowPredict, err == nil, o.timeSource.Now().Sub(start).Seconds())
	return result, err
}

func (o *Orchestrator) predict(ctx context.Context, data []byte, contentType string) (scanning.Prediction, error) {
	img, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		return scanning.Prediction{}, &Error{Kind: KindInputRejected, Err: err}
	}

	if !o.availability.Secondary {
		return scanning.Prediction{}, &Error{Kind: KindUnavailable, Backend: Secondary, Err: ErrNoServiceAvailable}
	}

	reply, err := o.secondary.Generate(ctx, img, scanning.PredictPrompt)
	if err != nil {
		berr := backendError(Secondary, err)
		o.metrics.attempt(flowPredict, Secondary, berr.Kind.String())
		slog.Warn("secondary backend failed", "flow", flowPredict, "kind", berr.Kind, "error", err)
		return scanning.Prediction{}, berr
	}
	o.metrics.attempt(flowPredict, Secondary, "success")

	prediction, err := scanning.ParsePrediction(reply)
	if err != nil {
		slog.Warn("using fallback prediction", "error", err)
	}
	slog.Info("predicted item",
		"name", prediction.ItemName,
		"remaining_days", prediction.PredictedRemainingDays,
		"confidence", prediction.Confidence,
	)
	return prediction, nil
}

// AnalyzeReceipt extracts the purchased items from a receipt photo. It never
// returns an error; failures are reported in the result.
func (o *Orchestrator) AnalyzeReceipt(ctx context.Context, data []byte, contentType string) AnalysisResult {
	start := o.timeSource.Now()

	result := o.analyzeReceipt(ctx, data, contentType)
	result.ProcessingTime = o.timeSource.Now().Sub(start)

	o.metrics.observe(flowReceipt, result.Success, result.ProcessingTime.Seconds())
	if result.Success {
		slog.Info("analysed receipt",
			"items", len(result.Items),
			"confidence", result.OverallConfidence,
			"processing_time", result.FormatProcessingTime(),
		)
	} else {
		slog.Warn("receipt analysis failed", "error", result.Error, "processing_time", result.FormatProcessingTime())
	}

	return result
}

func (o *Orchestrator) analyzeReceipt(ctx context.Context, data []byte, contentType string) AnalysisResult {
	img, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		return failure(&Error{Kind: KindInputRejected, Err: err})
	}

	if !o.availability.Any() {
		return failure(&Error{Kind: KindUnavailable, Err: ErrNoServiceAvailable})
	}

	if o.availability.Primary {
		text, err := o.primary.DetectDocumentText(ctx, img)
		if err == nil {
			o.metrics.attempt(flowReceipt, Primary, "success")
			items := extraction.ParseReceiptText(text)
			return AnalysisResult{
				Success:           true,
				Items:             items,
				OverallConfidence: extraction.OverallConfidence(items),
			}
		}

		berr := backendError(Primary, err)
		if errors.Is(err, scanning.ErrNoText) {
			o.metrics.attempt(flowReceipt, Primary, "no_text")
			if !o.availability.Secondary {
				return failure(berr)
			}
			o.metrics.fallback(flowReceipt)
			slog.Warn("primary backend read no text, falling back", "flow", flowReceipt)
		} else {
			o.metrics.attempt(flowReceipt, Primary, berr.Kind.String())
			if !o.shouldFallBack(flowReceipt, berr) {
				return failure(berr)
			}
		}
	}

	reply, err := o.secondary.Generate(ctx, img, scanning.ReceiptPrompt)
	if err != nil {
		berr := backendError(Secondary, err)
		o.metrics.attempt(flowReceipt, Secondary, berr.Kind.String())
		return failure(berr)
	}

	payload, err := scanning.ParseReceipt(reply)
	if err != nil {
		o.metrics.attempt(flowReceipt, Secondary, KindMalformed.String())
		return failure(&Error{Kind: KindMalformed, Backend: Secondary, Err: err})
	}
	o.metrics.attempt(flowReceipt, Secondary, "success")

	return AnalysisResult{
		Success:           true,
		Items:             extraction.Deduplicate(payload.Items),
		OverallConfidence: payload.Confidence,
	}
}

// shouldFallBack reports whether a primary failure may be retried on the
// secondary backend. Only billing failures qualify.
func (o *Orchestrator) shouldFallBack(flow string, err *Error) bool {
	if err.Kind != KindBilling {
		slog.Warn("primary backend failed", "flow", flow, "kind", err.Kind, "error", err.Err)
		return false
	}
	if !o.availability.Secondary {
		slog.Warn("primary backend billing failure, no fallback configured", "flow", flow, "error", err.Err)
		return false
	}

	o.metrics.fallback(flow)
	slog.Warn("primary backend billing failure, falling back", "flow", flow, "error", err.Err)
	return true
}

func topLabel(labels []scanning.DetectedLabel) scanning.DetectedLabel {
	top := labels[0]
	for _, label := range labels[1:] {
		if label.Score > top.Score {
			top = label
		}
	}
	return top
}

func failure(err error) AnalysisResult {
	return AnalysisResult{
		Success: false,
		Items:   []extraction.Item{},
		Error:   err.Error(),
	}
}
