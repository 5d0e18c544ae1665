// Package features turns candidate examples into sparse feature matrices.
package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orsinium-labs/stopwords"
	"github.com/ppiankov/relex/internal/extract"
	"github.com/ppiankov/relex/internal/matrix"
	"github.com/ppiankov/relex/internal/model"
)

// Vectorizer maps examples onto a vocabulary of feature strings.
// The vocabulary is fixed by Fit; Transform ignores features it has not seen.
type Vectorizer struct {
	Config model.FeatureConfig `json:"config"`
	Vocab  *Alphabet           `json:"vocab"`

	stop *stopwords.Stopwords
}

// NewVectorizer creates an unfitted vectorizer
func NewVectorizer(cfg model.FeatureConfig) *Vectorizer {
	v := &Vectorizer{
		Config: cfg,
		Vocab:  NewAlphabet(),
	}
	v.init()
	return v
}

func (v *Vectorizer) init() {
	if v.Config.SkipStopwords && v.stop == nil {
		v.stop = stopwords.MustGet("en")
	}
}

// Dim returns the number of columns Transform produces
func (v *Vectorizer) Dim() int {
	return v.Vocab.Size()
}

// Fit grows the vocabulary from examples and returns their feature matrix
func (v *Vectorizer) Fit(examples []extract.Example) *matrix.COO {
	v.init()
	rows := make([]map[int]float64, len(examples))
	for i, ex := range examples {
		rows[i] = make(map[int]float64)
		for _, f := range v.Features(ex) {
			rows[i][v.Vocab.Add(f)]++
		}
	}
	return buildCOO(rows, v.Vocab.Size())
}

// Transform returns the feature matrix of examples over the fitted vocabulary
func (v *Vectorizer) Transform(examples []extract.Example) *matrix.COO {
	v.init()
	rows := make([]map[int]float64, len(examples))
	for i, ex := range examples {
		rows[i] = make(map[int]float64)
		for _, f := range v.Features(ex) {
			if id := v.Vocab.Get(f); id >= 0 {
				rows[i][id]++
			}
		}
	}
	return buildCOO(rows, v.Vocab.Size())
}

func buildCOO(rows []map[int]float64, cols int) *matrix.COO {
	m := matrix.NewCOO(len(rows), cols)
	for i, r := range rows {
		ids := make([]int, 0, len(r))
		for id := range r {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			m.Append(i, id, r[id])
		}
	}
	return m
}

// Features returns the feature strings of one example
func (v *Vectorizer) Features(ex extract.Example) []string {
	s1, s2 := ex.Sentence1(), ex.Sentence2()
	type1, _ := s1.TypeAt(ex.Arg1.Loc)
	type2, _ := s2.TypeAt(ex.Arg2.Loc)

	feats := []string{
		"type1=" + type1,
		"type2=" + type2,
		"types=" + type1 + "|" + type2,
	}

	for _, w := range v.words(s1.Words(ex.Arg1.Loc)) {
		feats = append(feats, "arg1word="+w, "arg1word:"+type1+"="+w)
	}
	for _, w := range v.words(s2.Words(ex.Arg2.Loc)) {
		feats = append(feats, "arg2word="+w, "arg2word:"+type2+"="+w)
	}

	dist := ex.Arg2.Sentence - ex.Arg1.Sentence
	if dist != 0 {
		feats = append(feats,
			fmt.Sprintf("sentdist=%d", dist),
			"crosssentence",
			fmt.Sprintf("crosssentence:%s|%s", type1, type2))
		return feats
	}

	start1, end1 := bounds(ex.Arg1.Loc)
	start2, end2 := bounds(ex.Arg2.Loc)
	if start1 <= start2 {
		feats = append(feats, "order=forward")
	} else {
		feats = append(feats, "order=backward")
	}

	// Words strictly between the two spans
	lo, hi := end1+1, start2
	if start2 < start1 {
		lo, hi = end2+1, start1
	}
	var between []string
	for o := lo; o < hi && o < len(s1.Tokens); o++ {
		if o >= 0 {
			between = append(between, s1.Tokens[o].Word)
		}
	}
	feats = append(feats, "betweencount="+bucket(len(between)))
	if len(between) <= v.Config.BetweenWindow {
		for _, w := range v.words(between) {
			feats = append(feats, "between="+w)
		}
	}

	return feats
}

func (v *Vectorizer) words(ws []string) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		if v.Config.LowercaseWords {
			w = strings.ToLower(w)
		}
		if v.stop != nil && v.stop.Contains(strings.ToLower(w)) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func bounds(loc model.Location) (start, end int) {
	offsets := loc.Offsets()
	if len(offsets) == 0 {
		return 0, -1
	}
	start, end = offsets[0], offsets[0]
	for _, o := range offsets[1:] {
		start = min(start, o)
		end = max(end, o)
	}
	return start, end
}

func bucket(n int) string {
	switch {
	case n == 0:
		return "0"
	case n <= 2:
		return "1-2"
	case n <= 5:
		return "3-5"
	case n <= 10:
		return "6-10"
	default:
		return "11+"
	}
}
