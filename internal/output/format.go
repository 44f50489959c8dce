// Package output renders evaluated revsets for the git-revs CLI.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v5/plumbing"

	revset "github.com/revsets/revset-go"
)

// Compile-time interface conformance checks.
var (
	_ SetWriter = (*HashWriter)(nil)
	_ SetWriter = (*OnelineWriter)(nil)
)

// Format selects how result sets are printed.
type Format string

const (
	FormatHash    Format = "hash"
	FormatOneline Format = "oneline"
)

// SetWriter writes an evaluated set to an output stream in iteration
// order.
type SetWriter interface {
	Write(w io.Writer, repo *revset.Repo, set *revset.Set) error
}

// NewSetWriter returns the writer for the given format.
func NewSetWriter(format Format) SetWriter {
	switch format {
	case FormatOneline:
		return &OnelineWriter{}
	default:
		return &HashWriter{}
	}
}

// HashWriter prints one full commit id per line.
type HashWriter struct{}

func (hw *HashWriter) Write(w io.Writer, repo *revset.Repo, set *revset.Set) error {
	return set.ForEach(func(h plumbing.Hash) error {
		_, err := fmt.Fprintln(w, h.String())
		return err
	})
}

// OnelineWriter prints an abbreviated id and the commit subject, in the
// style of git log --oneline.
type OnelineWriter struct {
	// NoColor disables the colored id column.
	NoColor bool
}

func (ow *OnelineWriter) Write(w io.Writer, repo *revset.Repo, set *revset.Set) error {
	yellow := color.New(color.FgYellow)
	if ow.NoColor {
		yellow.DisableColor()
	}
	return set.ForEach(func(h plumbing.Hash) error {
		md, err := repo.Metadata(h)
		if err != nil {
			return err
		}
		subject := md.Message
		if idx := strings.IndexByte(subject, '\n'); idx != -1 {
			subject = subject[:idx]
		}
		if _, err := yellow.Fprint(w, h.String()[:12]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, " %s\n", subject)
		return err
	})
}
