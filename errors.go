package revset

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// ParseError reports a syntax error in a revset expression. Pos is the byte
// offset into the input where the error was detected.
type ParseError struct {
	Pos      int
	Expected string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s", e.Pos, e.Expected)
}

// UnresolvedNameError indicates a name that resolves to neither a reference
// nor a commit hash.
type UnresolvedNameError struct {
	Name string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("name %q cannot be resolved", e.Name)
}

// AmbiguousPrefixError indicates an abbreviated hash matching more than one
// commit.
type AmbiguousPrefixError struct {
	Prefix     string
	Candidates []plumbing.Hash
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("ambiguous prefix %q matches %d commits", e.Prefix, len(e.Candidates))
}

// UnknownFunctionError indicates a call to a function absent from the
// registry.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// ArityError indicates a function call with the wrong number of arguments.
type ArityError struct {
	Func string
	Min  int
	Max  int // -1 means unbounded
	Got  int
}

func (e *ArityError) Error() string {
	switch {
	case e.Max < 0:
		return fmt.Sprintf("function %q requires at least %d arguments, got %d", e.Func, e.Min, e.Got)
	case e.Min == e.Max:
		return fmt.Sprintf("function %q requires %d arguments, got %d", e.Func, e.Min, e.Got)
	default:
		return fmt.Sprintf("function %q requires %d to %d arguments, got %d", e.Func, e.Min, e.Max, e.Got)
	}
}

// PatternError indicates a malformed glob pattern in a filter function.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("bad pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// DateParseError indicates an unparsable date range passed to date() or
// committerdate().
type DateParseError struct {
	Input string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid date range %q", e.Input)
}

// ExpectStringError indicates a function received a computed sub-expression
// where a raw string argument was required.
type ExpectStringError struct {
	Func string
	Got  string
}

func (e *ExpectStringError) Error() string {
	return fmt.Sprintf("function %q expects a string argument, got %s", e.Func, e.Got)
}
