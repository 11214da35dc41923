// Package ui provides semantic text formatting for terminal output.
//
// Formatters colour their text when the terminal supports it. When NO_COLOR
// is set or colour is unavailable, some formatters fall back to plain
// decorations (quotes, parentheses) so the emphasis survives.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint formats the arguments and returns the resulting string.
func (f Formatter) Sprint(a ...any) string {
	return f.wrap(fmt.Sprint(a...))
}

// Sprintf formats according to a format specifier and returns the resulting string.
func (f Formatter) Sprintf(format string, a ...any) string {
	return f.wrap(fmt.Sprintf(format, a...))
}

func (f Formatter) wrap(text string) string {
	if NoColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// NoColor reports whether colour output is disabled, either through the
// NO_COLOR environment variable or fatih/color's terminal detection.
func NoColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Success formats success indicators. Green.
	Success = Formatter{color.New(color.FgGreen), "", ""}

	// Error formats failure indicators and reasons. Red.
	Error = Formatter{color.New(color.FgRed), "", ""}

	// Warning formats confirmations and cautions. Yellow.
	Warning = Formatter{color.New(color.FgYellow), "", ""}

	// Info formats informational notices such as empty listings. Cyan.
	Info = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight formats user-supplied values: emails, organization and site
	// names. Cyan with colour, 'single quotes' without.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary text. Gray with colour, (parentheses) without.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}

	// Header formats table column headings. Bold.
	Header = Formatter{color.New(color.Bold), "", ""}
)
