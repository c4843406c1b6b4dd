// Package extraction turns raw receipt OCR text into a list of purchased items.
//
// The pipeline is strictly sequential: lines are normalized, metadata lines
// are filtered out, each remaining line is mined for a name, quantity and
// price, scored, and the survivors are deduplicated by name similarity.
package extraction

// ParseReceiptText runs the full extraction pipeline over OCR text. Empty
// text yields an empty, non-nil slice.
func ParseReceiptText(text string) []Item {
	items := make([]Item, 0)

	for _, line := range NormalizeLines(text) {
		if IsNoise(line.Text) {
			continue
		}

		item, ok := ExtractItem(line.Text)
		if !ok {
			continue
		}

		item.Confidence = Score(line.Text, item)
		if item.Confidence > ConfidenceThreshold {
			items = append(items, item)
		}
	}

	return Deduplicate(items)
}

// OverallConfidence is the mean confidence of the items, or 0 for none
func OverallConfidence(items []Item) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Confidence
	}
	return sum / float64(len(items))
}
