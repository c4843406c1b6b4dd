package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/andi-frame/TeamName-KulkasKu/internal/extraction"
	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

const ocrReceipt = `JL. MERDEKA NO 12
INDOMIE GORENG 3.500
SUSU ULTRA 2x 12.500,00
TOTAL 28.500
TERIMA KASIH`

const generatedReceipt = "```json\n" + `{
  "items": [
    {"name": "TEH BOTOL SOSRO", "quantity": 1, "price": 4000, "confidence": 0.6},
    {"name": "TEH BOTOL SOSRO", "quantity": 2, "price": 4000, "confidence": 0.9},
    {"name": "ROTI TAWAR", "quantity": 1, "price": 15000, "confidence": 0.8}
  ],
  "confidence": 0.82
}` + "\n```"

var _ = Describe("Orchestrator", func() {
	var (
		recognizer *mockRecognizer
		generator  *mockGenerator
		primary    scanning.Recognizer
		secondary  scanning.Generator
		metrics    *Metrics
		timeSource *mockTimeSource
		orch       *Orchestrator
		data       []byte
		ctx        context.Context
	)

	BeforeEach(func() {
		recognizer = &mockRecognizer{}
		generator = &mockGenerator{}
		primary = recognizer
		secondary = generator
		metrics = NewMetrics(prometheus.NewRegistry())
		start := time.Date(2024, 8, 12, 14, 35, 0, 0, time.UTC)
		timeSource = &mockTimeSource{times: []time.Time{start, start.Add(1234 * time.Millisecond)}}
		data = pngBytes()
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		orch = NewOrchestratorWithDeps(primary, secondary, metrics, timeSource)
	})

	Describe("Availability", func() {
		When("both backends are configured", func() {
			It("should report both available", func() {
				Expect(orch.Availability()).To(Equal(Availability{Primary: true, Secondary: true}))
				Expect(orch.Availability().Any()).To(BeTrue())
			})
		})

		When("no backend is configured", func() {
			BeforeEach(func() {
				primary = nil
				secondary = nil
			})

			It("should report none available", func() {
				Expect(orch.Availability().Any()).To(BeFalse())
			})
		})
	})

	Describe("AnalyzeReceipt", func() {
		var result AnalysisResult

		JustBeforeEach(func() {
			result = orch.AnalyzeReceipt(ctx, data, "image/png")
		})

		When("the primary backend reads the receipt", func() {
			BeforeEach(func() {
				recognizer.text = ocrReceipt
			})

			It("should succeed with the extracted items", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.Error).To(BeEmpty())
				Expect(result.Items).To(HaveLen(2))
				Expect(result.Items[0].Name).To(Equal("INDOMIE GORENG"))
				Expect(result.Items[1].Quantity).To(Equal(2))
			})

			It("should report the mean item confidence", func() {
				Expect(result.OverallConfidence).To(BeNumerically("~", extraction.OverallConfidence(result.Items), 1e-9))
			})

			It("should record the processing time", func() {
				Expect(result.ProcessingTime).To(Equal(1234 * time.Millisecond))
				Expect(result.FormatProcessingTime()).To(Equal("1.23s"))
			})

			It("should not call the secondary backend", func() {
				Expect(generator.calls).To(Equal(0))
			})

			It("should count the attempt", func() {
				Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues("receipt", "primary", "success"))).To(Equal(1.0))
			})
		})

		When("the primary backend reports quota exceeded", func() {
			BeforeEach(func() {
				recognizer.textErr = errors.New("googleapi: Error 429: quota exceeded for quota metric 'Requests'")
				generator.reply = generatedReceipt
			})

			It("should succeed through the secondary backend", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.Error).To(BeEmpty())
				Expect(generator.calls).To(Equal(1))
				Expect(generator.prompts).To(ConsistOf(scanning.ReceiptPrompt))
			})

			It("should keep the billing failure out of the result", func() {
				Expect(result.Error).NotTo(ContainSubstring("quota"))
			})

			It("should deduplicate the generated items", func() {
				Expect(result.Items).To(HaveLen(2))
				Expect(result.Items[0].Name).To(Equal("TEH BOTOL SOSRO"))
				Expect(result.Items[0].Confidence).To(Equal(0.9))
				Expect(result.Items[0].UnitPrice.Equal(decimal.NewFromInt(4000))).To(BeTrue())
				Expect(result.Items[1].Name).To(Equal("ROTI TAWAR"))
			})

			It("should report the generated overall confidence", func() {
				Expect(result.OverallConfidence).To(Equal(0.82))
			})

			It("should count the fallback", func() {
				Expect(testutil.ToFloat64(metrics.fallbacks.WithLabelValues("receipt"))).To(Equal(1.0))
				Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues("receipt", "primary", "billing"))).To(Equal(1.0))
				Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues("receipt", "secondary", "success"))).To(Equal(1.0))
			})
		})

		When("the primary backend reports a network failure", func() {
			BeforeEach(func() {
				recognizer.textErr = errors.New("network unreachable")
				generator.reply = generatedReceipt
			})

			It("should fail without calling the secondary backend", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(ContainSubstring("network unreachable"))
				Expect(result.Items).To(BeEmpty())
				Expect(generator.calls).To(Equal(0))
			})

			It("should still record the processing time", func() {
				Expect(result.FormatProcessingTime()).To(Equal("1.23s"))
			})
		})

		When("the primary backend times out", func() {
			BeforeEach(func() {
				recognizer.textErr = fmt.Errorf("calling vision API: %w", context.DeadlineExceeded)
			})

			It("should fail without falling back", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(ContainSubstring("transient"))
				Expect(generator.calls).To(Equal(0))
			})
		})

		When("the primary backend reports a billing failure and there is no secondary backend", func() {
			BeforeEach(func() {
				recognizer.textErr = errors.New("billing account disabled")
				secondary = nil
			})

			It("should surface the billing failure", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(ContainSubstring("billing account disabled"))
			})
		})

		When("the primary backend reads no text", func() {
			BeforeEach(func() {
				recognizer.textErr = scanning.ErrNoText
				generator.reply = generatedReceipt
			})

			It("should fall back to the secondary backend", func() {
				Expect(result.Success).To(BeTrue())
				Expect(generator.calls).To(Equal(1))
			})

			Context("and there is no secondary backend", func() {
				BeforeEach(func() {
					secondary = nil
				})

				It("should fail", func() {
					Expect(result.Success).To(BeFalse())
					Expect(result.Error).To(ContainSubstring("no text detected"))
				})
			})
		})

		When("the primary backend reads only metadata", func() {
			BeforeEach(func() {
				recognizer.text = "TOTAL 45.000,00\nTERIMA KASIH"
			})

			It("should succeed with no items", func() {
				Expect(result.Success).To(BeTrue())
				Expect(result.Items).To(BeEmpty())
				Expect(result.OverallConfidence).To(BeZero())
			})
		})

		When("only the secondary backend is configured", func() {
			BeforeEach(func() {
				primary = nil
			})

			Context("and it returns a malformed payload", func() {
				BeforeEach(func() {
					generator.reply = `{"confidence": 0.9}`
				})

				It("should fail", func() {
					Expect(result.Success).To(BeFalse())
					Expect(result.Items).To(BeEmpty())
					Expect(result.Error).To(ContainSubstring("malformed response"))
				})
			})

			Context("and it fails", func() {
				BeforeEach(func() {
					generator.err = errors.New("upstream connect error")
				})

				It("should fail with the secondary error", func() {
					Expect(result.Success).To(BeFalse())
					Expect(result.Error).To(ContainSubstring("secondary backend"))
					Expect(result.Error).To(ContainSubstring("upstream connect error"))
				})
			})

			Context("and it answers", func() {
				BeforeEach(func() {
					generator.reply = generatedReceipt
				})

				It("should go straight to it", func() {
					Expect(result.Success).To(BeTrue())
					Expect(recognizer.textCalls).To(Equal(0))
				})
			})
		})

		When("no backend is configured", func() {
			BeforeEach(func() {
				primary = nil
				secondary = nil
			})

			It("should fail with no service available", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(ContainSubstring("no service available"))
			})
		})

		When("the upload is not an image", func() {
			BeforeEach(func() {
				data = []byte("not an image")
			})

			It("should fail without calling any backend", func() {
				Expect(result.Success).To(BeFalse())
				Expect(result.Error).To(ContainSubstring("input rejected"))
				Expect(recognizer.textCalls).To(Equal(0))
				Expect(generator.calls).To(Equal(0))
			})
		})
	})

	Describe("IdentifyItem", func() {
		var (
			result scanning.Identification
			err    error
		)

		JustBeforeEach(func() {
			result, err = orch.IdentifyItem(ctx, data, "image/png")
		})

		When("the primary backend returns labels", func() {
			BeforeEach(func() {
				recognizer.labels = []scanning.DetectedLabel{
					{Description: "Fruit", Score: 0.81},
					{Description: "Apple", Score: 0.97},
				}
			})

			It("should return the top scoring label", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal(scanning.Identification{Name: "Apple", Confidence: 0.97}))
				Expect(generator.calls).To(Equal(0))
			})
		})

		When("the primary backend finds no labels", func() {
			BeforeEach(func() {
				recognizer.labelsErr = scanning.ErrNoLabels
			})

			It("should return ErrNoLabels without falling back", func() {
				Expect(errors.Is(err, scanning.ErrNoLabels)).To(BeTrue())
				Expect(KindOf(err)).To(Equal(KindFatal))
				Expect(generator.calls).To(Equal(0))
			})
		})

		When("the primary backend returns an empty label list", func() {
			BeforeEach(func() {
				recognizer.labels = []scanning.DetectedLabel{}
			})

			It("should return ErrNoLabels", func() {
				Expect(errors.Is(err, scanning.ErrNoLabels)).To(BeTrue())
			})
		})

		When("the primary backend reports quota exceeded", func() {
			BeforeEach(func() {
				recognizer.labelsErr = errors.New("quota exceeded")
				generator.reply = "```json\n{\"name\":\"apel\",\"confidence\":0.92}\n```"
			})

			It("should answer from the secondary backend", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal(scanning.Identification{Name: "apel", Confidence: 0.92}))
				Expect(generator.prompts).To(ConsistOf(scanning.IdentifyPrompt))
			})
		})

		When("the primary backend reports a network failure", func() {
			BeforeEach(func() {
				recognizer.labelsErr = errors.New("network unreachable")
				generator.reply = `{"name":"apel","confidence":0.92}`
			})

			It("should fail without calling the secondary backend", func() {
				Expect(KindOf(err)).To(Equal(KindFatal))
				Expect(err).To(MatchError(ContainSubstring("network unreachable")))
				Expect(generator.calls).To(Equal(0))
			})
		})

		When("the secondary backend returns an unusable reply", func() {
			BeforeEach(func() {
				primary = nil
				generator.reply = "I am not sure."
			})

			It("should return the fallback identification", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal(scanning.Identification{Name: "unidentified", Confidence: 0.3}))
			})
		})

		When("the secondary backend times out", func() {
			BeforeEach(func() {
				primary = nil
				generator.err = fmt.Errorf("generating content: %w", context.DeadlineExceeded)
			})

			It("should return a transient error", func() {
				Expect(KindOf(err)).To(Equal(KindTransient))
				Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			})
		})

		When("no backend is configured", func() {
			BeforeEach(func() {
				primary = nil
				secondary = nil
			})

			It("should return an unavailable error", func() {
				Expect(KindOf(err)).To(Equal(KindUnavailable))
				Expect(errors.Is(err, ErrNoServiceAvailable)).To(BeTrue())
			})
		})

		When("the upload is not an image", func() {
			BeforeEach(func() {
				data = []byte("not an image")
			})

			It("should reject the input", func() {
				Expect(KindOf(err)).To(Equal(KindInputRejected))
				Expect(errors.Is(err, scanning.ErrUnreadableImage)).To(BeTrue())
				Expect(recognizer.labelCalls).To(Equal(0))
			})
		})
	})

	Describe("PredictItem", func() {
		var (
			result scanning.Prediction
			err    error
		)

		JustBeforeEach(func() {
			result, err = orch.PredictItem(ctx, data, "image/png")
		})

		When("the secondary backend answers", func() {
			BeforeEach(func() {
				generator.reply = `{"item_name":"Bayam","condition_description":"Segar","predicted_remaining_days":3,"reasoning":"Daun hijau cerah","confidence":0.8}`
			})

			It("should return the prediction", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.ItemName).To(Equal("Bayam"))
				Expect(result.PredictedRemainingDays).To(Equal(3))
				Expect(generator.prompts).To(ConsistOf(scanning.PredictPrompt))
			})

			It("should never call the primary backend", func() {
				Expect(recognizer.labelCalls + recognizer.textCalls).To(Equal(0))
			})
		})

		When("the secondary backend returns prose", func() {
			BeforeEach(func() {
				generator.reply = "Looks fresh to me."
			})

			It("should return the low confidence placeholder", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Confidence).To(Equal(0.3))
			})
		})

		When("the secondary backend fails", func() {
			BeforeEach(func() {
				generator.err = errors.New("API key not valid")
			})

			It("should return the error", func() {
				Expect(err).To(MatchError(ContainSubstring("API key not valid")))
				Expect(KindOf(err)).To(Equal(KindFatal))
			})
		})

		When("only the primary backend is configured", func() {
			BeforeEach(func() {
				secondary = nil
			})

			It("should return an unavailable error", func() {
				Expect(KindOf(err)).To(Equal(KindUnavailable))
			})
		})
	})
})

var _ = Describe("NewOrchestrator", func() {
	It("should accept nil metrics", func() {
		orch := NewOrchestrator(&mockRecognizer{text: ocrReceipt}, nil, nil)
		result := orch.AnalyzeReceipt(context.Background(), pngBytes(), "image/png")
		Expect(result.Success).To(BeTrue())
	})
})
