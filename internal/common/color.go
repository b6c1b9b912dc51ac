package common

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var colorEnabled = true

var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	purpleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	grayStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	// http://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		colorEnabled = false
		return
	}
	colorEnabled = IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// SetColor forces colored output on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func BoldRed(s string) string {
	return render(redStyle.Inherit(boldStyle), s)
}

func Red(s string) string {
	return render(redStyle, s)
}

func BoldGreen(s string) string {
	return render(greenStyle.Inherit(boldStyle), s)
}

func Green(s string) string {
	return render(greenStyle, s)
}

func BoldYellow(s string) string {
	return render(yellowStyle.Inherit(boldStyle), s)
}

func BoldPurple(s string) string {
	return render(purpleStyle.Inherit(boldStyle), s)
}

func Gray(s string) string {
	return render(grayStyle, s)
}
