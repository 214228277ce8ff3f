package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type ui struct {
	out     io.Writer
	verbose bool
}

func (u ui) infof(format string, args ...any) {
	_, _ = fmt.Fprintln(u.out, dim(fmt.Sprintf(format, args...)))
}

func (u ui) successf(format string, args ...any) {
	_, _ = fmt.Fprintln(u.out, green(fmt.Sprintf(format, args...)))
}

func (u ui) warnf(format string, args ...any) {
	_, _ = fmt.Fprintln(u.out, yellow(fmt.Sprintf(format, args...)))
}

func (u ui) errorf(format string, args ...any) {
	_, _ = fmt.Fprintln(u.out, red(fmt.Sprintf(format, args...)))
}

func (u ui) verbosef(format string, args ...any) {
	if !u.verbose {
		return
	}
	_, _ = fmt.Fprintln(u.out, dim(fmt.Sprintf(format, args...)))
}

// note prints a dim label followed by a highlighted value.
func (u ui) note(label, value string) {
	_, _ = fmt.Fprintf(u.out, "%s %s\n", dim(label), cyan(value))
}

func isTTY(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// colorTerminal reports whether out can render colour: a TTY with a TERM that
// is not dumb.
func colorTerminal(out io.Writer, getenv func(string) string) bool {
	t := strings.TrimSpace(getenv("TERM"))
	if t == "" || t == "dumb" {
		return false
	}
	return isTTY(out)
}
