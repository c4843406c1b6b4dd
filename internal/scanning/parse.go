package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/andi-frame/TeamName-KulkasKu/internal/extraction"
)

const (
	unidentifiedName       = "unidentified"
	fallbackConfidence     = 0.3
	defaultReceiptScore    = 0.7
	defaultPredictionScore = 0.5

	unknownFoodName      = "Unknown food"
	unknownCondition     = "Condition could not be analysed"
	unknownReasoning     = "Analysis unavailable"
	unprocessedReasoning = "AI response could not be processed"
	defaultRemainingDays = 1
)

// Identification is the main object recognised in a photo
type Identification struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Prediction is a food condition and shelf life estimate
type Prediction struct {
	ItemName               string  `json:"item_name"`
	ConditionDescription   string  `json:"condition_description"`
	PredictedRemainingDays int     `json:"predicted_remaining_days"`
	Reasoning              string  `json:"reasoning"`
	Confidence             float64 `json:"confidence"`
}

// ReceiptPayload is a generative backend's reading of a receipt, sanitised to
// the same invariants as the text extraction pipeline.
type ReceiptPayload struct {
	Items      []extraction.Item
	Confidence float64
}

const receiptSchemaJSON = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": ["string", "null"]},
          "quantity": {"type": ["number", "null"]},
          "price": {"type": ["number", "null"]},
          "confidence": {"type": ["number", "null"]}
        }
      }
    },
    "confidence": {"type": ["number", "null"]}
  }
}`

var receiptSchema = jsonschema.MustCompileString("receipt.schema.json", receiptSchemaJSON)

// extractJSON strips markdown code fences and returns the outermost JSON object in text
func extractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrMalformedResponse)
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: invalid JSON object in response", ErrMalformedResponse)
	}

	return []byte(text[startIdx : endIdx+1]), nil
}

// ParseIdentification parses a {"name", "confidence"} reply. When the reply is
// unusable it returns the "unidentified" fallback together with an error
// wrapping ErrMalformedResponse.
func ParseIdentification(text string) (Identification, error) {
	fallback := Identification{Name: unidentifiedName, Confidence: fallbackConfidence}

	data, err := extractJSON(text)
	if err != nil {
		return fallback, err
	}

	var raw struct {
		Name       *string  `json:"name"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fallback, fmt.Errorf("%w: unmarshaling json: %w", ErrMalformedResponse, err)
	}

	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" || raw.Confidence == nil {
		return fallback, fmt.Errorf("%w: missing name or confidence", ErrMalformedResponse)
	}

	return Identification{
		Name:       strings.TrimSpace(*raw.Name),
		Confidence: extraction.Clamp(*raw.Confidence),
	}, nil
}

// ParsePrediction parses a food prediction reply. Missing fields take
// defaults. When the reply is not JSON at all it returns a low confidence
// placeholder together with an error wrapping ErrMalformedResponse.
func ParsePrediction(text string) (Prediction, error) {
	prediction := Prediction{
		ItemName:               unknownFoodName,
		ConditionDescription:   unknownCondition,
		PredictedRemainingDays: defaultRemainingDays,
		Reasoning:              unknownReasoning,
		Confidence:             defaultPredictionScore,
	}

	var raw struct {
		ItemName               *string  `json:"item_name"`
		ConditionDescription   *string  `json:"condition_description"`
		PredictedRemainingDays *float64 `json:"predicted_remaining_days"`
		Reasoning              *string  `json:"reasoning"`
		Confidence             *float64 `json:"confidence"`
	}

	data, err := extractJSON(text)
	if err == nil {
		if uerr := json.Unmarshal(data, &raw); uerr != nil {
			err = fmt.Errorf("%w: unmarshaling json: %w", ErrMalformedResponse, uerr)
		}
	}
	if err != nil {
		prediction.Reasoning = unprocessedReasoning
		prediction.Confidence = fallbackConfidence
		return prediction, err
	}

	if raw.ItemName != nil {
		prediction.ItemName = *raw.ItemName
	}
	if raw.ConditionDescription != nil {
		prediction.ConditionDescription = *raw.ConditionDescription
	}
	if raw.PredictedRemainingDays != nil {
		prediction.PredictedRemainingDays = max(0, int(*raw.PredictedRemainingDays))
	}
	if raw.Reasoning != nil {
		prediction.Reasoning = *raw.Reasoning
	}
	if raw.Confidence != nil {
		prediction.Confidence = extraction.Clamp(*raw.Confidence)
	}

	return prediction, nil
}

// ParseReceipt parses and validates a receipt reply. A reply without an
// "items" array is malformed; there is no meaningful default item list.
func ParseReceipt(text string) (ReceiptPayload, error) {
	data, err := extractJSON(text)
	if err != nil {
		return ReceiptPayload{}, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ReceiptPayload{}, fmt.Errorf("%w: unmarshaling json: %w", ErrMalformedResponse, err)
	}
	if err := receiptSchema.Validate(doc); err != nil {
		return ReceiptPayload{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var raw struct {
		Items []struct {
			Name       *string  `json:"name"`
			Quantity   *float64 `json:"quantity"`
			Price      *float64 `json:"price"`
			Confidence *float64 `json:"confidence"`
		} `json:"items"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReceiptPayload{}, fmt.Errorf("%w: unmarshaling json: %w", ErrMalformedResponse, err)
	}

	payload := ReceiptPayload{
		Items:      make([]extraction.Item, 0, len(raw.Items)),
		Confidence: defaultReceiptScore,
	}
	if raw.Confidence != nil {
		payload.Confidence = extraction.Clamp(*raw.Confidence)
	}

	for _, rawItem := range raw.Items {
		if rawItem.Name == nil {
			continue
		}
		name := strings.TrimSpace(*rawItem.Name)
		if name == "" {
			continue
		}

		item := extraction.Item{
			Name:       name,
			Quantity:   1,
			UnitPrice:  decimal.Zero,
			Confidence: payload.Confidence,
		}
		if q := rawItem.Quantity; q != nil && *q >= 1 && *q <= math.MaxInt32 {
			item.Quantity = int(*q)
		}
		if p := rawItem.Price; p != nil && *p > 0 {
			item.UnitPrice = decimal.NewFromFloat(*p).Round(2)
		}
		if rawItem.Confidence != nil {
			item.Confidence = extraction.Clamp(*rawItem.Confidence)
		}

		payload.Items = append(payload.Items, item)
	}

	return payload, nil
}
