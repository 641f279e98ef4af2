package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/FocuswithJustin/quizqti/core/errors"
)

// Styles colors terminal output. Colors are off when NoColor is set or the
// writer is not a terminal.
type Styles struct {
	NoColor bool
}

// NewStyles returns the styles for writing to w.
func NewStyles(w io.Writer, noColor bool) Styles {
	if !noColor {
		f, ok := w.(*os.File)
		noColor = !ok || !term.IsTerminal(int(f.Fd()))
	}
	return Styles{NoColor: noColor}
}

func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func (s Styles) OK(text string) string    { return stylize(text, s.NoColor, lipgloss.Color("42")) }
func (s Styles) Warn(text string) string  { return stylize(text, s.NoColor, lipgloss.Color("220")) }
func (s Styles) Muted(text string) string { return stylize(text, s.NoColor, lipgloss.Color("244")) }
func (s Styles) Fail(text string) string  { return stylize(text, s.NoColor, lipgloss.Color("196")) }

// Diagnostic labels err by kind. Quiz errors already carry their source
// location.
func (s Styles) Diagnostic(err error) string {
	label := "error:"
	switch {
	case errors.Is(err, errors.ErrSyntax):
		label = "syntax error:"
	case errors.Is(err, errors.ErrSemantic):
		label = "invalid quiz:"
	case errors.Is(err, errors.ErrCollaborator):
		label = "render error:"
	}
	return s.Fail(label) + " " + err.Error()
}

// Table renders label/value rows with aligned values.
func (s Styles) Table(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	var b strings.Builder
	for _, r := range rows {
		label := fmt.Sprintf("  %-*s", width, r[0])
		fmt.Fprintf(&b, "%s  %s\n", s.Muted(label), r[1])
	}
	return b.String()
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
