// Package progress turns deployment events into terminal output: stage
// banners, a single build indicator and log passthrough.
package progress

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mgeovany/hoist/internal/stream"
)

// Signal tells the caller whether an event ended the deployment.
type Signal int

const (
	SignalNone Signal = iota
	SignalComplete
	SignalFailed
)

// Completion is the confirmed identity of a finished deployment.
type Completion struct {
	ServiceID string
	MachineID string
	URL       string
}

// Failure is the content of an error event.
type Failure struct {
	Message string
	Detail  string
}

type Options struct {
	Verbose bool
	// Animate enables the braille indicator. Without it the indicator
	// prints its label and a final mark only.
	Animate bool
	// Interval between indicator frames. Defaults to 80ms.
	Interval time.Duration
	Logger   *slog.Logger
}

// Renderer is a stateful consumer of one event stream. Handle must be called
// from a single goroutine, in arrival order.
type Renderer struct {
	out  *lockedWriter
	opts Options
	log  *slog.Logger

	connected    bool
	stage        string
	buildStarted bool
	ind          *indicator

	fallback   Completion
	completion Completion
	failure    Failure

	// indicator cycles, for tests
	starts, finishes int
}

var stageIcons = map[string]string{
	stream.StageConnected:     "🔗",
	stream.StageExtracting:    "📦",
	stream.StageUploading:     "☁️ ",
	stream.StageBuilding:      "🔨",
	stream.StageStarting:      "🏃",
	stream.StageCapturingLogs: "📝",
	stream.StageComplete:      "✅",
}

const rule = "────────────────────────────────────────────────────────────────────────────────"

func New(out io.Writer, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{out: &lockedWriter{w: out}, opts: opts, log: logger}
}

// Writer returns the serialised writer shared with the indicator, for callers
// that print around the event stream.
func (r *Renderer) Writer() io.Writer { return r.out }

// SetFallback supplies identity values from the upload response, used when the
// complete event omits them.
func (r *Renderer) SetFallback(c Completion) { r.fallback = c }

// Connected reports whether the connected stage was seen.
func (r *Renderer) Connected() bool { return r.connected }

// Completion is valid after Handle returned SignalComplete.
func (r *Renderer) Completion() Completion { return r.completion }

// Failure is valid after Handle returned SignalFailed.
func (r *Renderer) Failure() Failure { return r.failure }

// HandleRaw decodes one event body. Malformed bodies are logged and skipped.
func (r *Renderer) HandleRaw(data []byte) Signal {
	ev, err := stream.Decode(data)
	if err != nil {
		r.log.Warn("failed to parse event", "body", strings.TrimSpace(string(data)), "err", err)
		return SignalNone
	}
	return r.Handle(ev)
}

func (r *Renderer) Handle(ev stream.Event) Signal {
	switch ev.Type {
	case stream.TypeStatus:
		r.status(ev.Stage)
	case stream.TypeLogStream:
		r.logStream(ev.Data.BuildLog)
	case stream.TypeLog:
		r.logEvent(ev.Data)
	case stream.TypeComplete:
		r.finishIndicator(green("✓"))
		r.complete(ev)
		return SignalComplete
	case stream.TypeError:
		r.finishIndicator(red("✗"))
		r.failure = Failure{Message: ev.Message, Detail: ev.Data.Error}
		r.out.printf("\n%s\n", red("❌ Deployment failed: "+ev.Message))
		if ev.Data.Error != "" {
			r.out.printf("%s\n", red(ev.Data.Error))
		}
		return SignalFailed
	default:
		r.out.printf("%s\n", gray("["+ev.Type+"] "+ev.Message))
	}
	return SignalNone
}

// Stop ends a live indicator without a mark, e.g. on disconnect or cancel.
func (r *Renderer) Stop() {
	if r.ind == nil {
		return
	}
	r.finishIndicator("")
}

// Disconnected explains an ambiguous loss of the stream after connecting.
func (r *Renderer) Disconnected() {
	r.Stop()
	r.out.printf("\n%s\n", yellow("⚠️  Lost connection to deployment stream"))
	r.out.printf("%s\n", dim("   The deployment may have completed successfully"))
	r.out.printf("%s\n", dim("   Check the service status before deploying again"))
}

// ConnectionFailed reports a stream that never connected.
func (r *Renderer) ConnectionFailed(detail string) {
	r.Stop()
	r.out.printf("\n%s\n", red("❌ Stream connection error"))
	if r.opts.Verbose && detail != "" {
		r.out.printf("%s %s\n", dim("Error details:"), detail)
	} else {
		r.out.printf("%s\n", dim("   Run with --verbose to see connection details"))
	}
}

func (r *Renderer) status(stage string) {
	if stage == stream.StageConnected {
		r.connected = true
		r.out.printf("\n%s Connected to deployment service\n", stageIcons[stream.StageConnected])
		return
	}
	if stage == "" || stage == r.stage {
		return
	}

	if r.ind != nil {
		r.finishIndicator(green("✓"))
		r.buildStarted = false
	}

	r.stage = stage
	icon, ok := stageIcons[stage]
	if !ok {
		icon = "🔸"
	}
	r.out.printf("\n%s %s...\n", icon, stageTitle(stage))
}

func (r *Renderer) logStream(chunk string) {
	if chunk == "" {
		return
	}
	if r.opts.Verbose {
		if !r.buildStarted {
			r.section("Build output:")
			r.buildStarted = true
		}
		_, _ = io.WriteString(r.out, chunk)
		return
	}
	if r.buildStarted {
		return
	}
	r.buildStarted = true
	r.ind = startIndicator(r.out, "Building application", r.opts.Animate, r.opts.Interval)
	r.starts++
}

func (r *Renderer) logEvent(d stream.EventData) {
	r.finishIndicator(green("✓"))

	if r.opts.Verbose {
		if d.BuildLog != "" && !r.buildStarted {
			r.section("Build output:")
			r.out.printf("%s\n", d.BuildLog)
		}
		if d.StartupLog != "" {
			r.section("Startup logs:")
			r.out.printf("%s\n", d.StartupLog)
		}
		if d.Output != "" {
			r.section("Output:")
			r.out.printf("%s\n", d.Output)
		}
	} else if strings.Contains(strings.ToLower(d.StartupLog), "error") {
		r.out.printf("\n%s\n", yellow("⚠️  Startup warnings detected. Run with --verbose to see details."))
	}

	// every log event closes the current build phase, including in verbose mode
	r.buildStarted = false
}

func (r *Renderer) complete(ev stream.Event) {
	c := Completion{ServiceID: ev.ServiceID, MachineID: ev.MachineID, URL: ev.URL}
	if c.ServiceID == "" {
		c.ServiceID = r.fallback.ServiceID
	}
	if c.MachineID == "" {
		c.MachineID = r.fallback.MachineID
	}
	if c.URL == "" {
		c.URL = r.fallback.URL
	}
	r.completion = c

	r.out.printf("\n%s\n", green("✅ Deployment completed successfully!"))
	if c.ServiceID != "" {
		r.out.printf("   %s %s\n", dim("Service ID:"), cyan(c.ServiceID))
	}
	if c.MachineID != "" {
		r.out.printf("   %s %s\n", dim("Machine:"), cyan(c.MachineID))
	}
	if c.URL != "" {
		r.out.printf("\n%s\n   %s\n\n", cyan("🌐 Your app is now available at:"), link(c.URL))
	}
}

func (r *Renderer) finishIndicator(mark string) {
	if r.ind == nil {
		return
	}
	r.ind.finish(mark)
	r.ind = nil
	r.finishes++
}

func (r *Renderer) section(title string) {
	r.out.printf("\n%s\n%s\n", gray(title), gray(rule))
}

// stageTitle turns "capturing-logs" into "Capturing logs".
func stageTitle(stage string) string {
	s := strings.ReplaceAll(stage, "-", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
