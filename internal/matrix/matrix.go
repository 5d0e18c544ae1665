// Package matrix reads and writes feature matrices in a small text format.
//
// A file starts with a header line naming the layout and shape:
//
//	%sparse	<rows>	<cols>
//	%dense	<rows>	<cols>
//
// Sparse files list one nonzero per line as "row<TAB>col<TAB>value" with
// 0-based indices. Dense files list one whitespace separated row per line;
// further lines starting with % are comments.
package matrix

import (
	"errors"
	"fmt"
	"sort"
)

// ErrFormat marks malformed matrix data
var ErrFormat = errors.New("invalid matrix format")

// FormatError reports where matrix data could not be parsed
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", ErrFormat, e.Msg)
	}
	return fmt.Sprintf("%s at line %d: %s", ErrFormat, e.Line, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

func formatErrorf(line int, format string, args ...any) error {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Matrix is anything with a shape. *COO and *mat.Dense both qualify.
type Matrix interface {
	Dims() (r, c int)
}

// Entry is one stored value of a sparse matrix
type Entry struct {
	Row   int
	Col   int
	Value float64
}

// COO is a sparse matrix in coordinate-list form
type COO struct {
	rows, cols int
	Row        []int
	Col        []int
	Data       []float64
}

// NewCOO creates an empty sparse matrix of the given shape
func NewCOO(rows, cols int) *COO {
	return &COO{rows: rows, cols: cols}
}

// Dims returns the shape of the matrix
func (m *COO) Dims() (r, c int) {
	return m.rows, m.cols
}

// NNZ returns the number of stored entries
func (m *COO) NNZ() int {
	return len(m.Data)
}

// Append stores a value. Indices outside the shape panic.
func (m *COO) Append(i, j int, v float64) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range for %dx%d", i, j, m.rows, m.cols))
	}
	m.Row = append(m.Row, i)
	m.Col = append(m.Col, j)
	m.Data = append(m.Data, v)
}

// Entries returns the stored values in storage order
func (m *COO) Entries() []Entry {
	out := make([]Entry, len(m.Data))
	for k := range m.Data {
		out[k] = Entry{Row: m.Row[k], Col: m.Col[k], Value: m.Data[k]}
	}
	return out
}

// Rows groups the stored values by row, each row sorted by column
func (m *COO) Rows() [][]Entry {
	rows := make([][]Entry, m.rows)
	for k := range m.Data {
		i := m.Row[k]
		rows[i] = append(rows[i], Entry{Row: i, Col: m.Col[k], Value: m.Data[k]})
	}
	for _, r := range rows {
		sort.Slice(r, func(a, b int) bool { return r[a].Col < r[b].Col })
	}
	return rows
}

// SelectColumns returns a matrix keeping only the given columns, renumbered
// in the order listed. Unlisted columns are dropped.
func (m *COO) SelectColumns(cols []int) *COO {
	remap := make(map[int]int, len(cols))
	for newCol, oldCol := range cols {
		remap[oldCol] = newCol
	}

	out := NewCOO(m.rows, len(cols))
	for k := range m.Data {
		if nc, ok := remap[m.Col[k]]; ok {
			out.Append(m.Row[k], nc, m.Data[k])
		}
	}
	return out
}
