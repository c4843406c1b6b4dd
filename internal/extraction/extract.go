package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const minNameLength = 3

var (
	// rePrice matches amounts such as 12.500, 1.250.000 or 12.500,00. Three
	// digit groups are always thousands; the optional two digit tail is the
	// fractional part, whichever separator style the receipt uses.
	rePrice           = regexp.MustCompile(`(\d+(?:[.,]\d{3})+)(?:[.,](\d{2}))?`)
	reGroupSeparators = regexp.MustCompile(`[.,]`)

	reQuantity      = regexp.MustCompile(`(?i)\b\d+\s*x\b|\b\d+\s*pcs\b|\b\d+\s*pc\b`)
	reDigits        = regexp.MustCompile(`\d+`)
	reSpaces        = regexp.MustCompile(`\s+`)
	reLeadingDigits = regexp.MustCompile(`^\d+\s*`)
)

// ExtractItem pulls a name, quantity and unit price out of a single receipt
// line. The returned item has no confidence yet. ok is false when nothing
// usable is left for a name once prices and quantity markers are removed.
func ExtractItem(line string) (item Item, ok bool) {
	prices := rePrice.FindAllStringSubmatch(line, -1)
	price := decimal.Zero
	if len(prices) > 0 {
		// The rightmost amount is the line total column on most receipts.
		price = parsePrice(prices[len(prices)-1])
	}

	quantities := reQuantity.FindAllString(line, -1)
	quantity := 1
	if len(quantities) > 0 {
		quantity = parseQuantity(quantities[0])
	}

	name := line
	for _, match := range prices {
		name = strings.ReplaceAll(name, match[0], "")
	}
	for _, match := range quantities {
		name = strings.ReplaceAll(name, match, "")
	}
	name = reSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = reLeadingDigits.ReplaceAllString(name, "")

	if utf8.RuneCountInString(name) < minNameLength {
		return Item{}, false
	}

	return Item{
		Name:      name,
		Quantity:  quantity,
		UnitPrice: price,
	}, true
}

// parsePrice converts a rePrice submatch to a decimal, yielding zero when the
// digits cannot be parsed.
func parsePrice(match []string) decimal.Decimal {
	digits := reGroupSeparators.ReplaceAllString(match[1], "")
	if match[2] != "" {
		digits += "." + match[2]
	}
	price, err := decimal.NewFromString(digits)
	if err != nil || price.IsNegative() {
		return decimal.Zero
	}
	return price
}

func parseQuantity(marker string) int {
	digits := reDigits.FindString(marker)
	quantity, err := strconv.Atoi(digits)
	if err != nil || quantity < 1 {
		return 1
	}
	return quantity
}
