package core

import "testing"

func TestResolveMonth(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{
			name:   "explicit month field wins over date",
			record: Record{"month": "Май", "Дата": "15.03.2024"},
			want:   "Май",
		},
		{
			name:   "russian month alias",
			record: Record{"Месяц": "Июнь"},
			want:   "Июнь",
		},
		{
			name:   "lowercase month alias",
			record: Record{"месяц": "Июль"},
			want:   "Июль",
		},
		{
			name:   "dotted date is day first",
			record: Record{"Дата": "15.03.2024"},
			want:   "Март",
		},
		{
			name:   "dashed date is year first",
			record: Record{"Дата": "2024-03-15"},
			want:   "Март",
		},
		{
			name:   "english date alias",
			record: Record{"date": "2024-12-01"},
			want:   "Декабрь",
		},
		{
			name:   "datetime alias",
			record: Record{"Дата и время": "01.02.2024 13:45"},
			want:   "Февраль",
		},
		{
			name:   "unparsable date degrades to sentinel",
			record: Record{"Дата": "bad-date"},
			want:   MonthUnknown,
		},
		{
			name:   "month component out of range",
			record: Record{"Дата": "15.13.2024"},
			want:   MonthUnknown,
		},
		{
			name:   "no date fields at all",
			record: Record{"Сумма": 100},
			want:   MonthUnknown,
		},
		{
			name:   "empty month field falls through to date",
			record: Record{"month": "", "Дата": "10.01.2024"},
			want:   "Январь",
		},
		{
			name:   "non-string date value is skipped",
			record: Record{"Дата": 20240315, "date": "2024-04-01"},
			want:   "Апрель",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.record)
			if got.Month != tt.want {
				t.Errorf("Resolve(%v).Month = %q, want %q", tt.record, got.Month, tt.want)
			}
		})
	}
}

func TestResolveAmount(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   float64
	}{
		{
			name:   "numeric amount",
			record: Record{"Сумма": 150.5},
			want:   150.5,
		},
		{
			name:   "string amount is converted",
			record: Record{"сумма": "250"},
			want:   250,
		},
		{
			name:   "first alias in priority order wins",
			record: Record{"Сумма": 100.0, "Дебет": 999.0},
			want:   100,
		},
		{
			name:   "zero value still wins over later aliases",
			record: Record{"Сумма": 0.0, "Кредит": 500.0},
			want:   0,
		},
		{
			name:   "debit alias",
			record: Record{"Дебет": "75.25"},
			want:   75.25,
		},
		{
			name:   "unconvertible value falls through to next alias",
			record: Record{"Сумма": "n/a", "Amount": 42.0},
			want:   42,
		},
		{
			name:   "no amount fields means zero",
			record: Record{"Дата": "01.01.2024"},
			want:   0,
		},
		{
			name:   "nothing convertible means zero",
			record: Record{"Сумма": "x", "amount": ""},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.record)
			if got.Amount != tt.want {
				t.Errorf("Resolve(%v).Amount = %v, want %v", tt.record, got.Amount, tt.want)
			}
		})
	}
}

func TestResolveConflicts(t *testing.T) {
	got := Resolve(Record{"Сумма": 100.0, "Дебет": 200.0, "Кредит": "bad"})
	if got.AmountField != "Сумма" {
		t.Errorf("AmountField = %q, want %q", got.AmountField, "Сумма")
	}
	if len(got.Conflicts) != 1 || got.Conflicts[0] != "Дебет" {
		t.Errorf("Conflicts = %v, want [Дебет]", got.Conflicts)
	}

	got = Resolve(Record{"Сумма": 100.0})
	if len(got.Conflicts) != 0 {
		t.Errorf("single amount field should not conflict, got %v", got.Conflicts)
	}
}

func TestCleanDonorKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain name untouched", "Иванов Иван", "Иванов Иван"},
		{"latin marker stripped", "Ivanov Ivan BIN: 123456789012", "Ivanov Ivan"},
		{"iik marker stripped", "Ivanov IIK: KZ123", "Ivanov"},
		{"marker without colon kept", "Ivanov BIN 123", "Ivanov BIN 123"},
		{"surrounding space trimmed", "  Ivanov  ", "Ivanov"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDonorKey(tt.raw); got != tt.want {
				t.Errorf("CleanDonorKey(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
