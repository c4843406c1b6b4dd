package extraction

import (
	"regexp"
	"strings"
)

// ConfidenceThreshold is the score an item must strictly exceed to be kept.
const ConfidenceThreshold = 0.3

const (
	baseConfidence    = 0.5
	priceBonus        = 0.3
	quantityBonus     = 0.1
	labelBonus        = 0.2
	suspiciousPenalty = 0.2
)

var suspiciousWords = []string{"struk", "bon", "kasir", "total"}

var reLetterRun = regexp.MustCompile(`[A-Z]{3,}`)

// Score rates how likely an extracted item is a real purchase. line is the
// normalized receipt line the item came from.
func Score(line string, item Item) float64 {
	confidence := baseConfidence

	if item.UnitPrice.IsPositive() {
		confidence += priceBonus
	}
	if item.Quantity > 1 {
		confidence += quantityBonus
	}
	if reLetterRun.MatchString(item.Name) {
		confidence += labelBonus
	}

	lower := strings.ToLower(line)
	for _, word := range suspiciousWords {
		if strings.Contains(lower, word) {
			confidence -= suspiciousPenalty
		}
	}

	return Clamp(confidence)
}

// Clamp bounds a confidence value to [0, 1]
func Clamp(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
