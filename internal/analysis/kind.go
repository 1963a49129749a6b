package analysis

// Kind names one of the AI analysis flavors the backend can run.
type Kind string

const (
	KindCRM        Kind = "crm"
	KindExcel2025  Kind = "excel2025"
	KindComparison Kind = "comparison"
)

// Kinds returns every analysis kind in tab order.
func Kinds() []Kind {
	return []Kind{KindCRM, KindExcel2025, KindComparison}
}

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindCRM, KindExcel2025, KindComparison:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}
