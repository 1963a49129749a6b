package core

import (
	"math"
	"strconv"
	"strings"
)

// Record is one donation/transaction entry as it arrives from the analytics
// backend: an opaque field mapping with no standardized column names. The
// same semantic field may appear under Russian or English names in either
// case, or be missing entirely.
type Record map[string]any

// MonthUnknown is the bucket label for records whose date cannot be resolved.
const MonthUnknown = "—"

// MonthNames holds the localized month names used as bucket labels, indexed
// by month number minus one.
var MonthNames = [12]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Field aliases are matched case-sensitively in priority order. The lists
// cover every variant observed in uploaded CRM exports; extending them is
// preferred over relaxing the matching.
var (
	monthAliases = []string{"month", "Месяц", "месяц"}

	dateAliases = []string{"Дата", "дата", "Date", "date", "Дата и время"}

	amountAliases = []string{
		"Сумма", "сумма", "Amount", "amount",
		"Дебет", "дебет", "Debit", "debit",
		"Кред", "кред", "Кредит", "кредит",
		"Credit", "credit",
	}
)

// Resolved is the outcome of field resolution for a single record.
type Resolved struct {
	Month  string
	Amount float64

	// AmountField names the alias that supplied the amount, empty when no
	// field converted. Conflicts lists further aliases that also held a
	// convertible value; the record should be reviewed but the first match
	// still wins.
	AmountField string
	Conflicts   []string
}

// Resolve extracts a month label and a monetary amount from a record. It
// never fails: records with no usable date degrade to MonthUnknown and
// records with no usable amount contribute 0.
func Resolve(r Record) Resolved {
	res := Resolved{Month: resolveMonth(r)}

	for _, alias := range amountAliases {
		v, ok := r[alias]
		if !ok {
			continue
		}
		n, ok := toFinite(v)
		if !ok {
			continue
		}
		if res.AmountField == "" {
			res.AmountField = alias
			res.Amount = n
		} else {
			res.Conflicts = append(res.Conflicts, alias)
		}
	}
	return res
}

func resolveMonth(r Record) string {
	for _, alias := range monthAliases {
		if s, ok := r[alias].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	for _, alias := range dateAliases {
		s, ok := r[alias].(string)
		if !ok {
			continue
		}
		if name, ok := monthFromDate(s); ok {
			return name
		}
	}
	return MonthUnknown
}

// monthFromDate derives a month name from a date string. Dot-separated dates
// are day-first (15.03.2024), dash-separated ones year-first (2024-03-15);
// in both layouts the month is the second component.
func monthFromDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	var parts []string
	if strings.Contains(s, ".") {
		parts = strings.Split(s, ".")
	} else {
		parts = strings.Split(s, "-")
	}
	if len(parts) < 2 {
		return "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return MonthNames[m-1], true
}

// toFinite converts a loosely-typed field value to a finite float64.
func toFinite(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
