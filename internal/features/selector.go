package features

import "github.com/ppiankov/relex/internal/matrix"

// Selector keeps the feature columns that occur in at least MinCount training rows.
// It is fitted once on training data and then applied unchanged.
type Selector struct {
	MinCount int   `json:"min_count"`
	Columns  []int `json:"columns"`
	InputDim int   `json:"input_dim"`
}

// FitSelector chooses columns from a training matrix
func FitSelector(m *matrix.COO, minCount int) *Selector {
	_, cols := m.Dims()
	rowsWith := make([]int, cols)
	for _, e := range m.Entries() {
		if e.Value != 0 {
			rowsWith[e.Col]++
		}
	}

	s := &Selector{MinCount: minCount, InputDim: cols}
	for c, n := range rowsWith {
		if n >= minCount {
			s.Columns = append(s.Columns, c)
		}
	}
	return s
}

// Transform keeps the selected columns of m
func (s *Selector) Transform(m *matrix.COO) *matrix.COO {
	return m.SelectColumns(s.Columns)
}

// Dim returns the number of selected columns
func (s *Selector) Dim() int {
	return len(s.Columns)
}
