// Package targets loads the relation types a run should learn and the
// argument type pairs allowed to form candidates.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
)

// ErrFormat marks a malformed relation description
var ErrFormat = errors.New("invalid relation description")

// FormatError reports the offending line of a relation description file
type FormatError struct {
	Line int
	Text string
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at line %d (%q): %s", ErrFormat, e.Line, e.Text, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// TypePair is an ordered pair of trigger types
type TypePair struct {
	Type1 string
	Type2 string
}

func (p TypePair) String() string {
	return p.Type1 + "|" + p.Type2
}

// Set is the target relation table together with the target argument filter.
// Class IDs start at 1; 0 always means "no relation".
type Set struct {
	relations [][]string
	ids       map[string]int
	arguments map[TypePair]struct{}
}

// New builds a Set from relation keys and allowed type pairs.
// Relation keys are either a bare name or "name;arg1;arg2".
func New(relations []string, pairs []TypePair) *Set {
	seen := make(map[string]bool, len(relations))
	var parts [][]string
	for _, r := range relations {
		if seen[r] {
			continue
		}
		seen[r] = true
		parts = append(parts, strings.Split(r, ";"))
	}

	sort.Slice(parts, func(i, j int) bool {
		return slices.Compare(parts[i], parts[j]) < 0
	})

	s := &Set{
		relations: parts,
		ids:       make(map[string]int, len(parts)),
		arguments: make(map[TypePair]struct{}, len(pairs)),
	}
	for i, p := range parts {
		s.ids[strings.Join(p, ";")] = i + 1
	}
	for _, p := range pairs {
		s.arguments[p] = struct{}{}
	}
	return s
}

// Load reads a relation description file
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open relation descriptions: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads relation descriptions, one "nameAndArgs<TAB>type1<TAB>type2" per line.
// When nameAndArgs is "relName;argName1;argName2" the two (argName, type) pairs are
// sorted by argument name so that argument order in the file does not matter.
func Parse(r io.Reader) (*Set, error) {
	var relations []string
	var pairs []TypePair

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, &FormatError{Line: lineNo, Text: line, Msg: fmt.Sprintf("expected 3 tab-separated fields, got %d", len(fields))}
		}
		nameAndArgs, type1, type2 := fields[0], fields[1], fields[2]

		nameParts := strings.Split(nameAndArgs, ";")
		switch len(nameParts) {
		case 1:
			relations = append(relations, nameAndArgs)
			pairs = append(pairs, TypePair{Type1: type1, Type2: type2})
		case 3:
			relName := nameParts[0]
			args := [][2]string{{nameParts[1], type1}, {nameParts[2], type2}}
			sort.Slice(args, func(i, j int) bool {
				if args[i][0] != args[j][0] {
					return args[i][0] < args[j][0]
				}
				return args[i][1] < args[j][1]
			})
			relations = append(relations, strings.Join([]string{relName, args[0][0], args[1][0]}, ";"))
			pairs = append(pairs, TypePair{Type1: args[0][1], Type2: args[1][1]})
		default:
			return nil, &FormatError{Line: lineNo, Text: line, Msg: "expected a relation name or relName;argName1;argName2"}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan relation descriptions: %w", err)
	}

	return New(relations, pairs), nil
}

// ID returns the class ID of a relation key
func (s *Set) ID(relation string) (int, bool) {
	id, ok := s.ids[relation]
	return id, ok
}

// Name returns the relation key for a class ID
func (s *Set) Name(classID int) (string, bool) {
	if classID < 1 || classID > len(s.relations) {
		return "", false
	}
	return strings.Join(s.relations[classID-1], ";"), true
}

// Relations returns relation keys ordered by class ID
func (s *Set) Relations() []string {
	out := make([]string, len(s.relations))
	for i, p := range s.relations {
		out[i] = strings.Join(p, ";")
	}
	return out
}

// Allows reports whether a type pair passes the argument filter
func (s *Set) Allows(type1, type2 string) bool {
	_, ok := s.arguments[TypePair{Type1: type1, Type2: type2}]
	return ok
}

// Arguments returns the allowed type pairs in sorted order
func (s *Set) Arguments() []TypePair {
	out := make([]TypePair, 0, len(s.arguments))
	for p := range s.arguments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type1 != out[j].Type1 {
			return out[i].Type1 < out[j].Type1
		}
		return out[i].Type2 < out[j].Type2
	})
	return out
}

// Len returns the number of target relations
func (s *Set) Len() int {
	return len(s.relations)
}
