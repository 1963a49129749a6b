package core

import (
	"regexp"
	"strings"
)

// Bank exports often append identification codes to the donor name, e.g.
// "Иванов Иван ИИН: 123456789012". Everything from the first code marker
// onward is stripped.
var donorKeyNoise = regexp.MustCompile(`(?i)\b(БИН|BIN|IIK|ИИК|ИИН|IIN|БИК|BIK):`)

// CleanDonorKey normalizes a raw donor identifier for display and lookup.
func CleanDonorKey(raw string) string {
	if loc := donorKeyNoise.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	return strings.TrimSpace(raw)
}
