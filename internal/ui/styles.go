// Package ui holds the terminal helpers of the feeder CLI: ANSI styling,
// color detection and secret prompts.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorFail   = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderOK marks a successful submission or check.
func RenderOK(s string) string { return render(colorOK, s) }

// RenderWarn marks a field diagnostic.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderFail marks a failed submission or check.
func RenderFail(s string) string { return render(colorFail, s) }

// Status renders "ok" or "failed" for a result.
func Status(success bool) string {
	if success {
		return RenderOK("ok")
	}
	return RenderFail("failed")
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
