package view

import "github.com/stemsi/exstem-quiz/internal/model"

// Palette holds the ANSI sequences a theme renders with. An empty Palette
// renders plain text.
type Palette struct {
	Reset  string
	Title  string
	Accent string
	Good   string
	Bad    string
	Muted  string
}

var (
	darkPalette = Palette{
		Reset:  "\x1b[0m",
		Title:  "\x1b[1;97m",
		Accent: "\x1b[96m",
		Good:   "\x1b[92m",
		Bad:    "\x1b[91m",
		Muted:  "\x1b[90m",
	}
	lightPalette = Palette{
		Reset:  "\x1b[0m",
		Title:  "\x1b[1;30m",
		Accent: "\x1b[34m",
		Good:   "\x1b[32m",
		Bad:    "\x1b[31m",
		Muted:  "\x1b[37m",
	}
)

// PaletteFor returns the palette of a theme. Unknown themes fall back to dark.
func PaletteFor(theme model.Theme) Palette {
	if theme == model.ThemeLight {
		return lightPalette
	}
	return darkPalette
}

func (p Palette) paint(code, s string) string {
	if code == "" {
		return s
	}
	return code + s + p.Reset
}
