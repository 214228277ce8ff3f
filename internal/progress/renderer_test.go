package progress

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/mgeovany/hoist/internal/stream"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func status(stage string) stream.Event { return stream.Event{Type: stream.TypeStatus, Stage: stage} }

func TestRenderer_BuildSequence(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Animate: true, Interval: time.Hour})

	events := []stream.Event{
		status("connecting"),
		status(stream.StageBuilding),
		{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "compiling..."}},
		{Type: stream.TypeLog, Data: stream.EventData{StartupLog: "started ok"}},
		{Type: stream.TypeComplete, ServiceID: "svc1", URL: "https://svc1.example"},
	}
	var last Signal
	for i, ev := range events {
		last = r.Handle(ev)
		if i < len(events)-1 && last != SignalNone {
			t.Fatalf("event %d returned %v", i, last)
		}
	}
	if last != SignalComplete {
		t.Fatalf("final signal = %v", last)
	}

	got := buf.String()
	want := "\n🔸 Connecting...\n" +
		"\n🔨 Building...\n" +
		"   Building application ⠋" +
		"\b✓\n" +
		"\n✅ Deployment completed successfully!\n" +
		"   Service ID: svc1\n" +
		"\n🌐 Your app is now available at:\n   https://svc1.example\n\n"
	if got != want {
		t.Fatalf("output:\n%q\nwant:\n%q", got, want)
	}
	if strings.Count(got, "Building...") != 1 {
		t.Fatalf("building banner printed %d times", strings.Count(got, "Building..."))
	}
	if r.starts != 1 || r.finishes != 1 {
		t.Fatalf("indicator cycles: starts=%d finishes=%d", r.starts, r.finishes)
	}
	if c := r.Completion(); c.ServiceID != "svc1" || c.URL != "https://svc1.example" {
		t.Fatalf("completion = %+v", c)
	}
}

func TestRenderer_ConnectedAndRepeatedStages(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Handle(status(stream.StageConnected))
	r.Handle(status(stream.StageCapturingLogs))
	r.Handle(status(stream.StageCapturingLogs))
	r.Handle(status(""))

	if !r.Connected() {
		t.Fatalf("connected not recorded")
	}
	want := "\n🔗 Connected to deployment service\n\n📝 Capturing logs...\n"
	if buf.String() != want {
		t.Fatalf("output %q", buf.String())
	}
}

func TestRenderer_StageChangeClosesIndicator(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Handle(status(stream.StageBuilding))
	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "a"}})
	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "b"}})
	r.Handle(status(stream.StageStarting))

	want := "\n🔨 Building...\n   Building application ✓\n\n🏃 Starting...\n"
	if buf.String() != want {
		t.Fatalf("output %q", buf.String())
	}
	if r.starts != 1 || r.finishes != 1 {
		t.Fatalf("starts=%d finishes=%d", r.starts, r.finishes)
	}
}

func TestRenderer_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Verbose: true})

	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "step 1\n"}})
	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "step 2\n"}})
	r.Handle(stream.Event{Type: stream.TypeLog, Data: stream.EventData{BuildLog: "full log", StartupLog: "listening", Output: "out"}})

	got := buf.String()
	if strings.Count(got, "Build output:") != 1 {
		t.Fatalf("build header count in %q", got)
	}
	if strings.Contains(got, "full log") {
		t.Fatalf("streamed build log repeated: %q", got)
	}
	for _, s := range []string{"step 1\nstep 2\n", "Startup logs:", "listening", "Output:", "out"} {
		if !strings.Contains(got, s) {
			t.Fatalf("missing %q in %q", s, got)
		}
	}
	if r.starts != 0 {
		t.Fatalf("indicator started in verbose mode")
	}

	// the flag resets on every log event, so a following log prints its build log
	buf.Reset()
	r.Handle(stream.Event{Type: stream.TypeLog, Data: stream.EventData{BuildLog: "second build"}})
	if !strings.Contains(buf.String(), "Build output:") || !strings.Contains(buf.String(), "second build") {
		t.Fatalf("output %q", buf.String())
	}
}

func TestRenderer_StartupErrorAdvisory(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Handle(stream.Event{Type: stream.TypeLog, Data: stream.EventData{StartupLog: "Unhandled ERROR in handler"}})
	if !strings.Contains(buf.String(), "Run with --verbose") {
		t.Fatalf("advisory missing: %q", buf.String())
	}
	if strings.Contains(buf.String(), "Unhandled") {
		t.Fatalf("startup log printed in non-verbose mode")
	}
}

func TestRenderer_ErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})

	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "x"}})
	sig := r.Handle(stream.Event{Type: stream.TypeError, Message: "build failed", Data: stream.EventData{Error: "exit code 1"}})
	if sig != SignalFailed {
		t.Fatalf("signal = %v", sig)
	}
	if f := r.Failure(); f.Message != "build failed" || f.Detail != "exit code 1" {
		t.Fatalf("failure = %+v", f)
	}
	want := "   Building application ✗\n\n❌ Deployment failed: build failed\nexit code 1\n"
	if buf.String() != want {
		t.Fatalf("output %q", buf.String())
	}
}

func TestRenderer_UnknownAndMalformed(t *testing.T) {
	var buf, logs bytes.Buffer
	r := New(&buf, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	if sig := r.HandleRaw([]byte(`{"type":"heartbeat","message":"tick"}`)); sig != SignalNone {
		t.Fatalf("signal = %v", sig)
	}
	if sig := r.HandleRaw([]byte(`not json`)); sig != SignalNone {
		t.Fatalf("signal = %v", sig)
	}
	got := buf.String()
	if !strings.Contains(got, "[heartbeat] tick\n") || strings.Contains(got, "not json") {
		t.Fatalf("output %q", got)
	}
	if l := logs.String(); !strings.Contains(l, "failed to parse event") || !strings.Contains(l, "body=\"not json\"") {
		t.Fatalf("log %q", l)
	}
}

func TestRenderer_CompleteUsesFallback(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{})
	r.SetFallback(Completion{ServiceID: "svc-up", MachineID: "m-up", URL: "https://up.example"})

	r.Handle(stream.Event{Type: stream.TypeComplete, URL: "https://event.example"})
	c := r.Completion()
	if c.ServiceID != "svc-up" || c.MachineID != "m-up" || c.URL != "https://event.example" {
		t.Fatalf("completion = %+v", c)
	}
}

func TestRenderer_DisconnectStopsIndicator(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Animate: true, Interval: time.Hour})

	r.Handle(status(stream.StageConnected))
	r.Handle(stream.Event{Type: stream.TypeLogStream, Data: stream.EventData{BuildLog: "x"}})
	r.Disconnected()
	if r.ind != nil || r.finishes != 1 {
		t.Fatalf("indicator still live")
	}
	if !strings.Contains(buf.String(), "Lost connection to deployment stream") {
		t.Fatalf("output %q", buf.String())
	}
}

func TestIndicator_Animates(t *testing.T) {
	var buf bytes.Buffer
	out := &lockedWriter{w: &buf}

	ind := startIndicator(out, "Building application", true, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	ind.finish("✓")

	got := buf.String()
	if !strings.HasPrefix(got, "   Building application ⠋") {
		t.Fatalf("prefix %q", got)
	}
	if !strings.Contains(got, "\b⠙") {
		t.Fatalf("no frame advance in %q", got)
	}
	if !strings.HasSuffix(got, "\b✓\n") {
		t.Fatalf("suffix %q", got)
	}

	// nothing is written after finish
	n := buf.Len()
	time.Sleep(10 * time.Millisecond)
	if buf.Len() != n {
		t.Fatalf("indicator wrote after finish")
	}
}

func TestStageTitle(t *testing.T) {
	cases := map[string]string{
		"capturing-logs": "Capturing logs",
		"building":       "Building",
		"":               "",
	}
	for in, want := range cases {
		if got := stageTitle(in); got != want {
			t.Fatalf("stageTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
