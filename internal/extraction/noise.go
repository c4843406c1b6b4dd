package extraction

import (
	"regexp"
	"strings"
)

// stopKeywords mark header, footer and summary lines. The list is matched as
// plain substrings, so short entries such as "no" and "bon" also hit inside
// longer words.
var stopKeywords = []string{
	"total", "tunai", "kembali", "kembalian", "ppn", "pajak", "diskon",
	"terima kasih", "thank you", "welcome", "selamat datang",
	"kasir", "cashier", "no", "receipt", "struk", "bon",
	"alamat", "telp", "phone", "jalan", "street", "kota",
	"npwp", "subtotal", "qty", "harga", "jumlah",
}

var (
	rePriceOnly = regexp.MustCompile(`^\d+[.,]\d+$`)
	reDate      = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	reTime      = regexp.MustCompile(`\d{1,2}:\d{2}`)
)

// IsNoise reports whether a line is receipt metadata (totals, dates, store
// details) rather than a purchased item.
func IsNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, keyword := range stopKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	if rePriceOnly.MatchString(line) {
		return true
	}
	if reDate.MatchString(line) {
		return true
	}
	return reTime.MatchString(line)
}
