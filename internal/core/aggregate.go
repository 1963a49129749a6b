package core

// MonthStats maps a month label to the summed amount of every record that
// resolved to it. Buckets exist even when their sum is zero so that consumers
// can tell "month present with unparsable amounts" apart from "month absent".
type MonthStats map[string]float64

// Aggregate folds records into per-month sums. The result is independent of
// record order and conserves the total: the sum over all buckets equals the
// sum of the individual resolved amounts.
func Aggregate(records []Record) MonthStats {
	stats := make(MonthStats)
	for _, r := range records {
		res := Resolve(r)
		stats[res.Month] += res.Amount
	}
	return stats
}

// Total returns the sum over all buckets.
func (m MonthStats) Total() float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
