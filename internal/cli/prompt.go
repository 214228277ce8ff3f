package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mgeovany/hoist/internal/api"
)

// readLine reads one line from r. A cancelled ctx returns early; the pending
// read is abandoned.
func readLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.line != "") {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}

// machinePrompt lists machines and reads a numeric choice. Anything that is
// not a number is returned as 0 so the caller rejects it.
type machinePrompt struct {
	in  *bufio.Reader
	out io.Writer
}

func (p machinePrompt) Select(ctx context.Context, machines []api.Machine) (int, error) {
	_, _ = fmt.Fprintf(p.out, "\n%s\n", yellow("🖥️  Multiple machines available"))
	_, _ = fmt.Fprintln(p.out, dim("Please select a machine to deploy to:"))
	_, _ = fmt.Fprintln(p.out)
	for i, m := range machines {
		status := red("○")
		if m.Status == "running" {
			status = green("●")
		}
		label := bold(m.ID)
		if m.Name != "" {
			label += " " + dim("("+m.Name+")")
		}
		_, _ = fmt.Fprintf(p.out, "  %s %s %s\n", cyan(fmt.Sprintf("%d.", i+1)), status, label)
	}
	_, _ = fmt.Fprint(p.out, "\nSelect a machine (enter number): ")

	line, err := readLine(ctx, p.in)
	if err != nil {
		return 0, fmt.Errorf("read selection: %w", err)
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// confirm asks a yes/no question; only y or yes accepts.
func confirm(ctx context.Context, in *bufio.Reader, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s (y/N): ", question)
	line, err := readLine(ctx, in)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
