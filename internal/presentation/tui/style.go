package tui

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
)

// Palette colors outcome lines for a terminal.
type Palette struct {
	profile termenv.Profile
}

// NewPalette detects the color profile of the current terminal.
func NewPalette() Palette {
	return Palette{profile: termenv.ColorProfile()}
}

// NewPaletteWithProfile uses a fixed profile; termenv.Ascii disables colors.
func NewPaletteWithProfile(p termenv.Profile) Palette {
	return Palette{profile: p}
}

// Outcome paints line according to the outcome kind.
func (p Palette) Outcome(o domain.Outcome, line string) string {
	if p.profile == termenv.Ascii {
		return line
	}
	switch o.Kind {
	case domain.OutcomeTransition:
		if o.Strategy == domain.StrategyContinue {
			return p.paint(line, "#a78bfa")
		}
		return p.paint(line, "#34d399")
	case domain.OutcomeTerminate:
		return termenv.String(line).Foreground(p.profile.Color("#fb7185")).Bold().String()
	default:
		return termenv.String(line).Faint().String()
	}
}

func (p Palette) paint(text, hex string) string {
	if p.profile == termenv.Ascii {
		return text
	}
	return termenv.String(text).Foreground(p.profile.Color(hex)).String()
}
