// Package classify provides the multiclass linear classifier that labels
// candidate relations.
package classify

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/ppiankov/relex/internal/matrix"
	"github.com/ppiankov/relex/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Model is a softmax linear classifier over sparse features.
// Row k of Weights and Bias[k] score class Classes[k].
type Model struct {
	Classes []int
	Weights *mat.Dense
	Bias    []float64
}

// Train fits a model with stochastic gradient descent. Rows are visited in
// a seeded shuffle, so the same inputs always give the same model.
func Train(x *matrix.COO, y []int, cfg model.ClassifierConfig) (*Model, error) {
	rows, dim := x.Dims()
	if rows == 0 {
		return nil, errors.New("no training rows")
	}
	if len(y) != rows {
		return nil, fmt.Errorf("label count %d does not match row count %d", len(y), rows)
	}
	if dim == 0 {
		return nil, errors.New("no feature columns")
	}

	classes := uniqueSorted(y)
	column := make(map[int]int, len(classes))
	for k, c := range classes {
		column[c] = k
	}

	m := &Model{
		Classes: classes,
		Weights: mat.NewDense(len(classes), dim, nil),
		Bias:    make([]float64, len(classes)),
	}
	if len(classes) == 1 {
		return m, nil
	}

	data := x.Rows()
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	probs := make([]float64, len(classes))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lr := cfg.LearningRate / math.Sqrt(float64(epoch+1))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, i := range order {
			m.scores(data[i], probs)
			softmax(probs)

			target := column[y[i]]
			for k := range probs {
				g := probs[k]
				if k == target {
					g -= 1
				}
				w := m.Weights.RawRowView(k)
				for _, e := range data[i] {
					w[e.Col] -= lr * (g*e.Value + cfg.L2*w[e.Col])
				}
				m.Bias[k] -= lr * g
			}
		}
	}

	return m, nil
}

// Dim returns the number of feature columns the model expects
func (m *Model) Dim() int {
	_, c := m.Weights.Dims()
	return c
}

// Column returns the probability column of a class
func (m *Model) Column(class int) (int, bool) {
	k := sort.SearchInts(m.Classes, class)
	if k < len(m.Classes) && m.Classes[k] == class {
		return k, true
	}
	return 0, false
}

// PredictProba returns one row of class probabilities per input row,
// with columns ordered like Classes
func (m *Model) PredictProba(x *matrix.COO) (*mat.Dense, error) {
	rows, dim := x.Dims()
	if dim != m.Dim() {
		return nil, fmt.Errorf("feature dimension %d does not match model dimension %d", dim, m.Dim())
	}
	if rows == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(rows, len(m.Classes), nil)
	for i, r := range x.Rows() {
		p := out.RawRowView(i)
		m.scores(r, p)
		softmax(p)
	}
	return out, nil
}

// Predict returns the most probable class of every row.
// Ties go to the lower class ID.
func (m *Model) Predict(x *matrix.COO) ([]int, error) {
	probs, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	preds := make([]int, rows)
	for i := 0; i < rows; i++ {
		preds[i] = m.Classes[floats.MaxIdx(probs.RawRowView(i))]
	}
	return preds, nil
}

func (m *Model) scores(row []matrix.Entry, out []float64) {
	for k := range out {
		w := m.Weights.RawRowView(k)
		s := m.Bias[k]
		for _, e := range row {
			s += w[e.Col] * e.Value
		}
		out[k] = s
	}
}

func softmax(v []float64) {
	hi := floats.Max(v)
	sum := 0.0
	for i := range v {
		v[i] = math.Exp(v[i] - hi)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range y {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

type modelJSON struct {
	Classes []int     `json:"classes"`
	Dim     int       `json:"dim"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// MarshalJSON encodes the model with row-major weights
func (m *Model) MarshalJSON() ([]byte, error) {
	r, c := m.Weights.Dims()
	weights := make([]float64, 0, r*c)
	for k := 0; k < r; k++ {
		weights = append(weights, m.Weights.RawRowView(k)...)
	}
	return json.Marshal(modelJSON{Classes: m.Classes, Dim: c, Weights: weights, Bias: m.Bias})
}

// UnmarshalJSON decodes a model written by MarshalJSON
func (m *Model) UnmarshalJSON(data []byte) error {
	var mj modelJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	if len(mj.Classes) == 0 || mj.Dim <= 0 {
		return errors.New("model has no classes or features")
	}
	if len(mj.Weights) != len(mj.Classes)*mj.Dim || len(mj.Bias) != len(mj.Classes) {
		return errors.New("model weights do not match its shape")
	}
	m.Classes = mj.Classes
	m.Weights = mat.NewDense(len(mj.Classes), mj.Dim, mj.Weights)
	m.Bias = mj.Bias
	return nil
}
