package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the rootcause banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct{ text, color string }{
		{"                 _                               ", "#818cf8"},
		{"  _ __ ___   ___ | |_ ___ __ _ _   _ ___  ___   ", "#a78bfa"},
		{" | '__/ _ \\ / _ \\| __/ __/ _` | | | / __|/ _ \\  ", "#c084fc"},
		{" | | | (_) | (_) | || (_| (_| | |_| \\__ \\  __/  ", "#e879f9"},
		{" |_|  \\___/ \\___/ \\__\\___\\__,_|\\__,_|___/\\___|  ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
