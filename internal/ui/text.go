package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter renders one kind of content: in color on capable terminals,
// otherwise wrapped in plain-text decorations.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint formats like fmt.Sprint.
func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf formats like fmt.Sprintf.
func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline appends a newline unless s already ends with one.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// noColor honours NO_COLOR (https://no-color.org/) and fatih/color's own
// terminal detection.
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Code is for commands the user can run: yellow, or `backticks`.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Success, Error and Warning mark outcomes in green, red and yellow.
	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}

	// Info marks hints and started steps.
	Info = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight is for user values such as key ids and user ids: cyan, or 'quotes'.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted is for secondary text: gray, or (parentheses).
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)
