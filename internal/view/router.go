// Package view renders the session state for the terminal client. Screens
// are pure functions of a state snapshot and the current time.
package view

import (
	"io"
	"strings"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
)

type screen func(b *strings.Builder, p Palette, st *session.State, now time.Time)

var screens = map[model.View]screen{
	model.ViewHome:    renderHome,
	model.ViewSetup:   renderSetup,
	model.ViewTest:    renderTest,
	model.ViewResults: renderResults,
	model.ViewReview:  renderReview,
}

// Router draws the screen of the state's view.
type Router struct {
	// Plain disables colors.
	Plain bool
}

// Render returns the screen for st as text.
func (r Router) Render(st *session.State, now time.Time) string {
	p := PaletteFor(st.Theme)
	if r.Plain {
		p = Palette{}
	}

	var b strings.Builder
	if st.Error != nil {
		b.WriteString(p.paint(p.Bad, "! "+st.Error.Message) + "\n\n")
	}

	draw, ok := screens[st.View]
	if !ok {
		draw = renderHome
	}
	draw(&b, p, st, now)
	return b.String()
}

// Draw clears the terminal and writes the screen.
func (r Router) Draw(w io.Writer, st *session.State, now time.Time) error {
	out := r.Render(st, now)
	if !r.Plain {
		out = "\x1b[H\x1b[2J" + out
	}
	_, err := io.WriteString(w, out)
	return err
}
