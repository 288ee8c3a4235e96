// Package errors defines the structured error value shared by every phase
// of the Ember pipeline: reader, analyzer, tree walker and VM all return
// *Error rather than a bare error, so a caller can branch on Kind and Phase
// without string matching.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Phase identifies which pipeline stage raised an error.
type Phase int

const (
	PhaseParse Phase = iota
	PhaseAnalysis
	PhaseMacroexpand
	PhaseEval
)

func (p Phase) String() string {
	switch p {
	case PhaseParse:
		return "parse"
	case PhaseAnalysis:
		return "analysis"
	case PhaseMacroexpand:
		return "macroexpand"
	case PhaseEval:
		return "eval"
	default:
		return "unknown"
	}
}

// Kind enumerates the specific failure reasons callers need to distinguish.
type Kind int

const (
	// parse phase
	UnexpectedEof Kind = iota
	UnmatchedDelimiter
	InvalidToken
	InvalidNumber
	InvalidString
	InvalidRegex
	InvalidCharacter
	OddMapLiteral

	// analysis phase
	UndefinedSymbol
	InvalidArity
	InvalidBinding
	DuplicateKey

	// macroexpand phase
	MacroError

	// eval phase
	DivisionByZero
	IndexOutOfBounds
	TypeError
	AssertionError
	ArityError

	// cross-cutting
	InternalError
	OutOfMemory
)

func (k Kind) String() string {
	names := [...]string{
		"UnexpectedEof", "UnmatchedDelimiter", "InvalidToken", "InvalidNumber",
		"InvalidString", "InvalidRegex", "InvalidCharacter", "OddMapLiteral",
		"UndefinedSymbol", "InvalidArity", "InvalidBinding", "DuplicateKey",
		"MacroError",
		"DivisionByZero", "IndexOutOfBounds", "TypeError", "AssertionError", "ArityError",
		"InternalError", "OutOfMemory",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// Pos is a source position, carried from the reader through every later
// stage so failures can be reported where they originated.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is the structured failure value returned across every phase
// boundary. Cause chains are built with github.com/pkg/errors so a caller
// can still errors.Unwrap/errors.Cause down to the underlying failure.
type Error struct {
	Kind    Kind
	Phase   Phase
	Message string
	Pos     Pos
	Stack   []string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s] %s: %s", e.Phase, e.Kind, e.Pos, e.Message)
}

// Unwrap lets errors.Is/errors.As and github.com/pkg/errors.Cause traverse
// the chain.
func (e *Error) Unwrap() error { return e.cause }

// Cause returns the immediate cause, or nil for a root error.
func (e *Error) Cause() error { return e.cause }

// New builds a root Error with no cause.
func New(kind Kind, phase Phase, pos Pos, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// Wrap attaches cause to a new Error, preserving the chain so callers can
// walk from the outermost phase failure down to its root.
func Wrap(cause error, kind Kind, phase Phase, pos Pos, format string, args ...interface{}) *Error {
	e := New(kind, phase, pos, format, args...)
	e.cause = errors.WithStack(cause)
	return e
}

// Suggestion renders a short "did you mean" hint for UndefinedSymbol errors,
// picking the closest candidate name by Levenshtein distance.
func Suggestion(name string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein(name, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if best == "" || bestDist > len(name)/2+2 {
		return ""
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)
	prev := make([]int, n+1)
	cur := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		cur[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}
	return prev[n]
}
