package extraction

import (
	"strings"
	"unicode/utf8"
)

const minLineLength = 3

// NormalizeLines splits OCR text into trimmed, upper-cased lines, dropping
// anything shorter than three characters. Positions refer to the line index
// in the original text.
func NormalizeLines(text string) []RawLine {
	lines := make([]RawLine, 0)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineLength {
			continue
		}
		lines = append(lines, RawLine{
			Text:     strings.ToUpper(line),
			Position: i,
		})
	}
	return lines
}
