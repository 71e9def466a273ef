package tui

import (
	"fmt"
	"io"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                 _               `, "#34d399"},
	{`   __ _ _ __ ___| |__   ___  _ __ `, "#10b981"},
	{`  / _' | '__/ _ \ '_ \ / _ \| '__|`, "#059669"},
	{` | (_| | | |  __/ |_) | (_) | |   `, "#a3e635"},
	{`  \__,_|_|  \___|_.__/ \___/|_|   `, "#84cc16"},
}

// PrintBanner writes the arbor banner followed by a one-line subtitle.
func (p Palette) PrintBanner(w io.Writer, subtitle string) {
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, p.paint(line.text, line.color))
	}
	if subtitle != "" {
		fmt.Fprintln(w, p.paint("  "+subtitle, "#a78bfa"))
	}
	fmt.Fprintln(w)
}
