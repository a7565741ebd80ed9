package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Console writes styled messages for the CLI. In quiet mode only errors
// are printed. It is safe for concurrent use.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	quiet bool
}

// NewConsole creates a console writing to out, with errors going to errOut
func NewConsole(out, errOut io.Writer, quiet bool) *Console {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Console{out: out, err: errOut, quiet: quiet}
}

// Print writes s as-is unless the console is quiet
func (c *Console) Print(s string) {
	if c.quiet {
		return
	}
	c.write(c.out, s)
}

func (c *Console) write(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(w, s)
}

// Error prints an error message in red
func (c *Console) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	c.write(c.err, errorStyle.Render("✗ "+msg)+"\n")
}

// Success prints a success message in green
func (c *Console) Success(msg string) {
	if c.quiet {
		return
	}
	c.write(c.out, successStyle.Render("✓ "+msg)+"\n")
}

// Info prints a label and value
func (c *Console) Info(label string, value string) {
	if c.quiet {
		return
	}
	c.write(c.out, fmt.Sprintf("%s: %s\n", labelStyle.Render(label), valueStyle.Render(value)))
}

// Warning prints a warning message in yellow
func (c *Console) Warning(msg string, args ...interface{}) {
	if c.quiet {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, args[0])
	}
	c.write(c.out, warningStyle.Render("⚠ "+msg)+"\n")
}

// Highlight prints a highlighted message in magenta
func (c *Console) Highlight(msg string) {
	if c.quiet {
		return
	}
	c.write(c.out, highlightStyle.Render(msg)+"\n")
}
