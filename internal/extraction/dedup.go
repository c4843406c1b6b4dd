package extraction

import "strings"

// DuplicateThreshold is the name similarity above which two items are the same purchase.
const DuplicateThreshold = 0.8

// Similarity is the Jaccard similarity of the whitespace separated tokens of
// two names, ignoring case. It is 0 when either name has no tokens.
func Similarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToUpper(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Deduplicate merges items whose names are near-duplicates, keeping the one
// with the higher confidence in the position of the first accepted match.
// Input order is otherwise preserved. A later item only displaces earlier
// matches when it beats every one of them, so no two returned items are
// similar above DuplicateThreshold.
func Deduplicate(items []Item) []Item {
	unique := make([]Item, 0, len(items))

	for _, item := range items {
		var matches []int
		best := -1.0
		for i, existing := range unique {
			if Similarity(item.Name, existing.Name) > DuplicateThreshold {
				matches = append(matches, i)
				if existing.Confidence > best {
					best = existing.Confidence
				}
			}
		}

		if len(matches) == 0 {
			unique = append(unique, item)
			continue
		}
		if item.Confidence <= best {
			continue
		}

		unique[matches[0]] = item
		for j := len(matches) - 1; j > 0; j-- {
			idx := matches[j]
			unique = append(unique[:idx], unique[idx+1:]...)
		}
	}

	return unique
}
