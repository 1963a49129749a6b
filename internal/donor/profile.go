package donor

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"donorflow/internal/core"
)

// Stats summarizes a donor's giving history.
type Stats struct {
	TotalCount      int64   `json:"total_count"`
	TotalAmount     float64 `json:"total_amount"`
	AverageAmount   float64 `json:"average_amount"`
	LastTransaction string  `json:"last_transaction,omitempty"`
}

// Profile is the normalized donor profile. The backend answers in two
// shapes: the current one (user_info/stats/transactions) and a legacy one
// (donator_info/donations); both normalize to this.
type Profile struct {
	Key           string          `json:"key"`
	Name          string          `json:"name"`
	Info          map[string]any  `json:"info,omitempty"`
	Stats         Stats           `json:"stats"`
	Transactions  []core.Record   `json:"transactions"`
	MonthlyTotals core.MonthStats `json:"monthly_totals"`
	Legacy        bool            `json:"legacy,omitempty"`
}

type rawProfile struct {
	UserInfo     map[string]any `json:"user_info"`
	Stats        *Stats         `json:"stats"`
	Transactions []core.Record  `json:"transactions"`

	// Legacy shape.
	DonatorInfo map[string]any `json:"donator_info"`
	Donations   []core.Record  `json:"donations"`
}

// Normalize turns a raw backend profile response into a Profile. Stats are
// taken from the backend when present and recomputed from the transaction
// list otherwise.
func Normalize(key string, raw json.RawMessage) (Profile, error) {
	var rp rawProfile
	if err := json.Unmarshal(raw, &rp); err != nil {
		return Profile{}, fmt.Errorf("decode donor profile: %w", err)
	}

	p := Profile{
		Key:  key,
		Name: core.CleanDonorKey(key),
	}

	switch {
	case rp.UserInfo != nil || rp.Transactions != nil:
		p.Info = rp.UserInfo
		p.Transactions = rp.Transactions
		if rp.Stats != nil {
			p.Stats = *rp.Stats
		} else {
			p.Stats = computeStats(rp.Transactions)
		}
	case rp.DonatorInfo != nil || rp.Donations != nil:
		p.Legacy = true
		p.Info = rp.DonatorInfo
		p.Transactions = rp.Donations
		p.Stats = computeStats(rp.Donations)
	default:
		return Profile{}, fmt.Errorf("donor profile has neither user_info nor donator_info")
	}

	if p.Transactions == nil {
		p.Transactions = []core.Record{}
	}
	p.MonthlyTotals = core.Aggregate(p.Transactions)
	return p, nil
}

// computeStats derives summary stats from the transaction list. The average
// is rounded to the nearest whole unit; the last transaction is the latest
// record with a parseable date, reported in its original spelling.
func computeStats(records []core.Record) Stats {
	stats := Stats{TotalCount: int64(len(records))}

	var latest time.Time
	for _, r := range records {
		stats.TotalAmount += core.Resolve(r).Amount

		raw, when, ok := recordDate(r)
		if ok && when.After(latest) {
			latest = when
			stats.LastTransaction = raw
		}
	}

	if stats.TotalCount > 0 {
		stats.AverageAmount = math.Round(stats.TotalAmount / float64(stats.TotalCount))
	}
	return stats
}

var dateLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func recordDate(r core.Record) (string, time.Time, bool) {
	for _, alias := range []string{"Дата", "дата", "Date", "date", "Дата и время"} {
		s, ok := r[alias].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return s, t, true
			}
		}
	}
	return "", time.Time{}, false
}
