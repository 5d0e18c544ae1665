package matrix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	headerSparse = "%sparse"
	headerDense  = "%dense"
)

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return scanner
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseHeader parses "<kind>\t<rows>\t<cols>"
func parseHeader(line string) (kind string, rows, cols int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return "", 0, 0, formatErrorf(1, "expected header \"%%kind<TAB>rows<TAB>cols\", got %q", line)
	}
	kind = fields[0]
	if kind != headerSparse && kind != headerDense {
		return "", 0, 0, formatErrorf(1, "unknown type of matrix: %s", kind)
	}
	rows, err = strconv.Atoi(fields[1])
	if err != nil || rows < 0 {
		return "", 0, 0, formatErrorf(1, "invalid row count %q", fields[1])
	}
	cols, err = strconv.Atoi(fields[2])
	if err != nil || cols < 0 {
		return "", 0, 0, formatErrorf(1, "invalid column count %q", fields[2])
	}
	return kind, rows, cols, nil
}

// WriteCOO writes a sparse matrix
func WriteCOO(w io.Writer, m *COO) error {
	bw := bufio.NewWriter(w)
	r, c := m.Dims()
	if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\n", headerSparse, r, c); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for k := range m.Data {
		if _, err := fmt.Fprintf(bw, "%d\t%d\t%s\n", m.Row[k], m.Col[k], formatFloat(m.Data[k])); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}
	return bw.Flush()
}

// ReadCOO reads a sparse matrix
func ReadCOO(r io.Reader) (*COO, error) {
	scanner := newScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, formatErrorf(0, "empty input")
	}

	kind, rows, cols, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, err
	}
	if kind != headerSparse {
		return nil, formatErrorf(1, "expected %s header, got %s", headerSparse, kind)
	}

	m := NewCOO(rows, cols)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, formatErrorf(lineNo, "expected row<TAB>col<TAB>value, got %q", line)
		}
		i, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, formatErrorf(lineNo, "invalid row %q", fields[0])
		}
		j, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, formatErrorf(lineNo, "invalid column %q", fields[1])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, formatErrorf(lineNo, "invalid value %q", fields[2])
		}
		if i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, formatErrorf(lineNo, "entry (%d,%d) outside %dx%d", i, j, rows, cols)
		}
		m.Append(i, j, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	return m, nil
}

// WriteDense writes a dense matrix
func WriteDense(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	r, c := m.Dims()
	if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\n", headerDense, r, c); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	fields := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fields[j] = formatFloat(m.At(i, j))
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, " ")); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return bw.Flush()
}

// ReadDense reads a dense matrix. A matrix with no rows or no columns is
// returned as an empty *mat.Dense.
func ReadDense(r io.Reader) (*mat.Dense, error) {
	scanner := newScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, formatErrorf(0, "empty input")
	}

	kind, rows, cols, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, err
	}
	if kind != headerDense {
		return nil, formatErrorf(1, "expected %s header, got %s", headerDense, kind)
	}

	data := make([]float64, 0, rows*cols)
	read := 0
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != cols {
			return nil, formatErrorf(lineNo, "expected %d values, got %d", cols, len(fields))
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, formatErrorf(lineNo, "invalid value %q", f)
			}
			data = append(data, v)
		}
		read++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	if read != rows {
		return nil, formatErrorf(lineNo, "header declares %d rows, found %d", rows, read)
	}
	if rows == 0 || cols == 0 {
		return &mat.Dense{}, nil
	}
	return mat.NewDense(rows, cols, data), nil
}

// Save writes a *COO or a dense gonum matrix to path
func Save(path string, m Matrix) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close matrix file: %w", closeErr)
		}
	}()

	switch v := m.(type) {
	case *COO:
		return WriteCOO(f, v)
	case mat.Matrix:
		return WriteDense(f, v)
	default:
		return fmt.Errorf("unsupported matrix type %T", m)
	}
}

// Load reads a matrix file, returning *COO for %sparse and *mat.Dense for %dense.
// Any other header is a FormatError.
func Load(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	header, err := br.Peek(len(headerSparse))
	if err != nil && len(header) == 0 {
		return nil, formatErrorf(0, "empty input")
	}

	switch {
	case strings.HasPrefix(string(header), headerSparse):
		return ReadCOO(br)
	case strings.HasPrefix(string(header), headerDense):
		return ReadDense(br)
	default:
		first, _ := br.ReadString('\n')
		kind := strings.Fields(first)
		if len(kind) == 0 {
			return nil, formatErrorf(1, "missing matrix header")
		}
		return nil, formatErrorf(1, "unknown type of matrix: %s", kind[0])
	}
}
