package core

import (
	"math/rand"
	"testing"
)

func TestAggregate(t *testing.T) {
	t.Run("sums per month with sentinel bucket", func(t *testing.T) {
		records := []Record{
			{"Дата": "01.01.2024", "Сумма": 100.0},
			{"Дата": "15.01.2024", "Сумма": 50.0},
			{"Дата": "bad-date", "Сумма": "x"},
		}

		got := Aggregate(records)

		want := MonthStats{"Январь": 150, MonthUnknown: 0}
		if len(got) != len(want) {
			t.Fatalf("Aggregate() = %v, want %v", got, want)
		}
		for month, sum := range want {
			if got[month] != sum {
				t.Errorf("Aggregate()[%q] = %v, want %v", month, got[month], sum)
			}
		}
	})

	t.Run("empty input yields empty stats", func(t *testing.T) {
		got := Aggregate(nil)
		if len(got) != 0 {
			t.Errorf("Aggregate(nil) = %v, want empty", got)
		}
	})

	t.Run("unparsable amount still creates bucket", func(t *testing.T) {
		got := Aggregate([]Record{{"Дата": "01.05.2024", "Сумма": "n/a"}})
		sum, ok := got["Май"]
		if !ok {
			t.Fatal("expected bucket for Май")
		}
		if sum != 0 {
			t.Errorf("bucket sum = %v, want 0", sum)
		}
	})
}

func TestAggregateConservation(t *testing.T) {
	records := []Record{
		{"Дата": "01.01.2024", "Сумма": 100.0},
		{"Дата": "02.02.2024", "Дебет": 200.0},
		{"Дата": "03.03.2024", "Сумма": "300"},
		{"Дата": "oops", "Сумма": 50.0},
		{"month": "Январь", "Сумма": 25.0},
	}

	var total float64
	for _, r := range records {
		total += Resolve(r).Amount
	}

	if got := Aggregate(records).Total(); got != total {
		t.Errorf("Total() = %v, want %v", got, total)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	records := []Record{
		{"Дата": "01.01.2024", "Сумма": 10.0},
		{"Дата": "02.01.2024", "Сумма": 20.0},
		{"Дата": "01.02.2024", "Сумма": 30.0},
		{"Дата": "bad", "Сумма": 40.0},
	}

	want := Aggregate(records)

	shuffled := make([]Record, len(records))
	copy(shuffled, records)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Aggregate(shuffled)
		if len(got) != len(want) {
			t.Fatalf("shuffle %d: %v, want %v", i, got, want)
		}
		for month, sum := range want {
			if got[month] != sum {
				t.Errorf("shuffle %d: [%q] = %v, want %v", i, month, got[month], sum)
			}
		}
	}
}
