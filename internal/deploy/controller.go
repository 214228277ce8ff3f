// Package deploy runs one deployment: package, upload, optional machine
// selection, progress streaming and pointer persistence.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mgeovany/hoist/internal/api"
	"github.com/mgeovany/hoist/internal/archive"
	"github.com/mgeovany/hoist/internal/ignore"
	"github.com/mgeovany/hoist/internal/progress"
	"github.com/mgeovany/hoist/internal/project"
	"github.com/mgeovany/hoist/internal/stream"
)

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrStreamConnection = errors.New("stream connection failed")
	ErrDeployFailed     = errors.New("deployment failed")
)

// maxUploadAttempts bounds the upload/selection loop: the first upload plus
// one upload after the operator picks a machine.
const maxUploadAttempts = 2

// Uploader sends the archive to the deployment API.
type Uploader interface {
	Deploy(ctx context.Context, params api.DeployParams, payload api.Payload) (api.DeployResponse, error)
}

// TokenSource supplies the credential for the progress stream.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// MachineSelector asks the operator to pick one of machines. It returns the
// 1-based choice as entered; range checking is done by the controller.
type MachineSelector interface {
	Select(ctx context.Context, machines []api.Machine) (int, error)
}

// Mirror copies a finished archive somewhere durable.
type Mirror interface {
	Put(ctx context.Context, a *archive.Archive) (string, error)
}

type Config struct {
	Uploader   Uploader
	Subscriber stream.Subscriber
	Tokens     TokenSource
	Selector   MachineSelector
	// Mirror is optional.
	Mirror Mirror
	// APIURL is the CLI API root used to build stream addresses.
	APIURL string

	Out     io.Writer
	Verbose bool
	Animate bool
	TempDir string
	Logger  *slog.Logger
	// OnState observes every state transition.
	OnState func(State)
}

// Request is one immutable deployment.
type Request struct {
	// Dir is the directory to package.
	Dir string
	// ProjectRoot receives the pointer file on success. Defaults to Dir.
	ProjectRoot string
	Identity    project.Identity
}

// Outcome of a finished session. AssumedSuccess is set when the stream was
// lost after connecting; ServiceID and URL are then unconfirmed.
type Outcome struct {
	State          State
	ServiceID      string
	MachineID      string
	URL            string
	AssumedSuccess bool
	PointerSaved   bool
}

type Controller struct {
	cfg   Config
	log   *slog.Logger
	state State
}

func New(cfg Config) (*Controller, error) {
	switch {
	case cfg.Uploader == nil:
		return nil, errors.New("deploy: uploader is required")
	case cfg.Subscriber == nil:
		return nil, errors.New("deploy: stream subscriber is required")
	case cfg.Tokens == nil:
		return nil, errors.New("deploy: token source is required")
	case cfg.Selector == nil:
		return nil, errors.New("deploy: machine selector is required")
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{cfg: cfg, log: logger}, nil
}

// State returns the last state entered.
func (c *Controller) State() State { return c.state }

func (c *Controller) transition(s State) {
	c.log.Debug("deploy state", "from", c.state.String(), "to", s.String())
	c.state = s
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

func (c *Controller) fail(err error) (Outcome, error) {
	c.transition(StateFailed)
	return Outcome{State: StateFailed}, err
}

// Run executes the session. The archive is removed on every exit path.
func (c *Controller) Run(ctx context.Context, req Request) (Outcome, error) {
	c.transition(StateInit)
	if req.ProjectRoot == "" {
		req.ProjectRoot = req.Dir
	}
	out := c.cfg.Out

	c.transition(StatePackaging)
	fmt.Fprintf(out, "\n📦 Preparing deployment from: %s\n", cyan(req.Dir))

	rules, err := ignore.Resolve(req.Dir)
	if err != nil {
		fmt.Fprintf(out, "%s\n", yellow("⚠️  Could not read "+ignore.FileName+", using default exclusions: "+err.Error()))
	}

	arc, err := archive.Create(ctx, req.Dir, rules, archive.Options{TempDir: c.cfg.TempDir, Logger: c.log})
	if err != nil {
		return c.fail(fmt.Errorf("create archive: %w", err))
	}
	defer func() {
		if err := arc.Remove(); err != nil {
			c.log.Debug("remove archive", "path", arc.Path, "err", err)
		}
	}()

	fmt.Fprintf(out, "   %s Created %.2f MB archive (%d files)\n", green("✓"), float64(arc.Size)/1024/1024, arc.FileCount)
	if c.cfg.Verbose && arc.FileCount < 20 {
		fmt.Fprintf(out, "%s\n", gray("   Files: "+strings.Join(arc.Entries, ", ")))
	}

	if c.cfg.Mirror != nil {
		if loc, err := c.cfg.Mirror.Put(ctx, arc); err != nil {
			fmt.Fprintf(out, "%s\n", yellow("⚠️  Could not mirror archive: "+err.Error()))
		} else {
			c.log.Debug("archive mirrored", "location", loc)
		}
	}

	resp, params, err := c.upload(ctx, req.Identity, arc)
	if err != nil {
		return c.fail(err)
	}
	c.printTarget(req.Identity, params, resp)

	return c.streamProgress(ctx, req, params, resp)
}

// upload sends the archive, asking the operator for a machine at most once.
// Every attempt streams the same archive file.
func (c *Controller) upload(ctx context.Context, id project.Identity, arc *archive.Archive) (api.DeployResponse, api.DeployParams, error) {
	params := api.DeployParams{
		MachineID:           id.MachineID,
		ServiceID:           id.ServiceID,
		ServiceName:         id.ServiceName,
		ServiceIDFromConfig: id.ServiceIDFromConfig,
	}
	out := c.cfg.Out
	fmt.Fprintln(out, "\n🚀 Deploying to hoist...")

	for attempt := 1; ; attempt++ {
		c.transition(StateUploading)
		resp, err := c.cfg.Uploader.Deploy(ctx, params, arc.Open)
		if err != nil {
			return api.DeployResponse{}, params, err
		}
		if !resp.NeedsSelection {
			return resp, params, nil
		}
		if attempt >= maxUploadAttempts {
			return api.DeployResponse{}, params, errors.New("server asked for machine selection again after a machine was chosen")
		}

		c.transition(StateAwaitingSelection)
		machine, err := c.selectMachine(ctx, resp.AvailableMachines)
		if err != nil {
			return api.DeployResponse{}, params, err
		}
		fmt.Fprintf(out, "\n%s Selected machine: %s\n", green("✓"), cyan(machine.ID))
		params.MachineID = machine.ID
	}
}

func (c *Controller) selectMachine(ctx context.Context, machines []api.Machine) (api.Machine, error) {
	if len(machines) == 0 {
		return api.Machine{}, errors.New("server requested machine selection but offered no machines")
	}
	n, err := c.cfg.Selector.Select(ctx, machines)
	if err != nil {
		return api.Machine{}, err
	}
	if n < 1 || n > len(machines) {
		return api.Machine{}, fmt.Errorf("%w: %d (choose 1-%d)", ErrInvalidSelection, n, len(machines))
	}
	return machines[n-1], nil
}

func (c *Controller) printTarget(id project.Identity, params api.DeployParams, resp api.DeployResponse) {
	out := c.cfg.Out
	if params.ServiceName != "" {
		fmt.Fprintf(out, "   %s %s\n", dim("Service:"), cyan(params.ServiceName))
	}
	switch {
	case resp.ServiceID != "" || params.ServiceID != "":
		sid := resp.ServiceID
		if sid == "" {
			sid = params.ServiceID
		}
		fmt.Fprintf(out, "   %s %s\n", dim("Service ID:"), cyan(sid))
	case resp.MachineID != "":
		fmt.Fprintf(out, "   %s %s\n", dim("Machine:"), cyan(resp.MachineID))
	}
	if strings.Contains(resp.Message, "created") {
		fmt.Fprintf(out, "   %s %s\n", green("✓"), resp.Message)
	}
}

func (c *Controller) streamProgress(ctx context.Context, req Request, params api.DeployParams, resp api.DeployResponse) (Outcome, error) {
	c.transition(StateStreaming)

	token, err := c.cfg.Tokens.Token(ctx)
	if err != nil {
		return c.fail(err)
	}
	machineID := resp.MachineID
	if machineID == "" {
		machineID = params.MachineID
	}
	serviceID := resp.ServiceID
	if serviceID == "" {
		serviceID = params.ServiceID
	}

	r := progress.New(c.cfg.Out, progress.Options{
		Verbose: c.cfg.Verbose,
		Animate: c.cfg.Animate,
		Logger:  c.log,
	})
	r.SetFallback(progress.Completion{ServiceID: serviceID, MachineID: machineID, URL: resp.URL})

	ch, err := c.cfg.Subscriber.Subscribe(ctx, stream.Target{
		BaseURL:   c.cfg.APIURL,
		MachineID: machineID,
		StreamID:  resp.StreamID,
		Token:     token,
	})
	if err != nil {
		if ctx.Err() != nil {
			return c.fail(ctx.Err())
		}
		r.ConnectionFailed(err.Error())
		return c.fail(fmt.Errorf("%w: %v", ErrStreamConnection, err))
	}

	for {
		var msg stream.Message
		var ok bool
		select {
		case <-ctx.Done():
			r.Stop()
			return c.fail(ctx.Err())
		case msg, ok = <-ch:
		}

		if !ok || msg.Err != nil {
			if ctx.Err() != nil {
				r.Stop()
				return c.fail(ctx.Err())
			}
			fault := msg.Err
			if fault == nil {
				fault = stream.ErrClosed
			}
			return c.lostStream(r, fault)
		}

		switch r.HandleRaw(msg.Data) {
		case progress.SignalComplete:
			return c.complete(req, r), nil
		case progress.SignalFailed:
			f := r.Failure()
			return c.fail(fmt.Errorf("%w: %s", ErrDeployFailed, f.Message))
		}
	}
}

// lostStream handles a transport fault before a terminal event. Once the
// server confirmed the connection the deployment is assumed to proceed.
func (c *Controller) lostStream(r *progress.Renderer, fault error) (Outcome, error) {
	c.log.Debug("stream fault", "connected", r.Connected(), "err", fault)
	if r.Connected() {
		r.Disconnected()
		c.transition(StateDisconnectedAssumedOK)
		return Outcome{State: StateDisconnectedAssumedOK, AssumedSuccess: true}, nil
	}
	r.ConnectionFailed(fault.Error())
	return c.fail(fmt.Errorf("%w: %v", ErrStreamConnection, fault))
}

func (c *Controller) complete(req Request, r *progress.Renderer) Outcome {
	done := r.Completion()
	out := r.Writer()
	o := Outcome{
		State:     StateCompleted,
		ServiceID: done.ServiceID,
		MachineID: done.MachineID,
		URL:       done.URL,
	}
	if done.ServiceID != "" {
		if err := project.WritePointer(req.ProjectRoot, project.Pointer{ServiceID: done.ServiceID}); err != nil {
			fmt.Fprintf(out, "%s\n", yellow("⚠️  Could not save "+project.PointerFile+" file: "+err.Error()))
		} else {
			o.PointerSaved = true
			fmt.Fprintf(out, "   %s Saved service ID to %s file\n", green("✓"), project.PointerFile)
		}
	}
	c.transition(StateCompleted)
	return o
}
