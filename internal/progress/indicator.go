package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const defaultInterval = 80 * time.Millisecond

// lockedWriter serialises every terminal write of a renderer and its
// indicator goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (l *lockedWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l, format, args...)
}

// indicator is one animated "Building application" cycle. The goroutine
// exists only between start and finish.
type indicator struct {
	out      *lockedWriter
	interval time.Duration
	animate  bool

	stop chan struct{}
	done chan struct{}
}

func startIndicator(out *lockedWriter, label string, animate bool, interval time.Duration) *indicator {
	if interval <= 0 {
		interval = defaultInterval
	}
	ind := &indicator{
		out:      out,
		interval: interval,
		animate:  animate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if !animate {
		out.printf("   %s ", dim(label))
		close(ind.done)
		return ind
	}

	out.printf("   %s %s", dim(label), blue(frames[0]))
	go func() {
		defer close(ind.done)
		ticker := time.NewTicker(ind.interval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-ind.stop:
				return
			case <-ticker.C:
				i = (i + 1) % len(frames)
				out.printf("\b%s", blue(frames[i]))
			}
		}
	}()
	return ind
}

// finish stops the animation and replaces the frame with mark.
func (ind *indicator) finish(mark string) {
	if ind.animate {
		close(ind.stop)
		<-ind.done
		ind.out.printf("\b%s\n", mark)
		return
	}
	ind.out.printf("%s\n", mark)
}

var (
	dim    = color.New(color.Faint).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	link   = color.New(color.Bold, color.Underline).SprintFunc()
)
