package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console is a line-oriented terminal.
type Console interface {
	io.Writer
	ReadLine() (string, error)
}

type rawConsole struct {
	*term.Terminal
}

type lineConsole struct {
	io.Writer
	r *bufio.Reader
}

func (c *lineConsole) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// OpenConsole puts stdin into raw mode when it is a terminal so the screen
// can redraw above the input line. The returned restore func undoes it.
func OpenConsole(in, out *os.File) (Console, func(), error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return &lineConsole{Writer: out, r: bufio.NewReader(in)}, func() {}, nil
	}

	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, err
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, "> ")
	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}
	return rawConsole{t}, func() { _ = term.Restore(fd, old) }, nil
}

// NewLineConsole wraps plain reader/writer streams.
func NewLineConsole(r io.Reader, w io.Writer) Console {
	return &lineConsole{Writer: w, r: bufio.NewReader(r)}
}
