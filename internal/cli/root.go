// Package cli is the hoist command tree.
package cli

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mgeovany/hoist/internal/api"
	"github.com/mgeovany/hoist/internal/auth"
	"github.com/mgeovany/hoist/internal/config"
	"github.com/mgeovany/hoist/internal/stream"
)

// commands is filled by init funcs in the command files.
var commands []func(*app) *cobra.Command

func register(f func(*app) *cobra.Command) { commands = append(commands, f) }

// app carries process-wide state and the seams tests replace.
type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	getwd      func() (string, error)
	loadConfig func() (config.Config, error)
	newStore   func() (auth.Store, error)
	openURL    func(string) error
	httpClient *http.Client
	getenv     func(string) string

	verbose bool
	cfg     config.Config
	logger  *slog.Logger
	ui      ui
	session *auth.Session
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:         bufio.NewReader(in),
		out:        out,
		errOut:     errOut,
		getwd:      os.Getwd,
		loadConfig: config.Load,
		newStore:   func() (auth.Store, error) { return auth.NewKeyringStore() },
		getenv:     os.Getenv,
		logger:     discardLogger(),
		ui:         ui{out: out},
	}
}

// Execute runs hoist with args. SIGINT and SIGTERM cancel the running command.
func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(os.Stdin, os.Stdout, os.Stderr).run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hoist",
		Short:         "Deploy projects to the hoist platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "show detailed output")
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	for _, f := range commands {
		root.AddCommand(f(a))
	}
	return root
}

// prepare loads configuration and builds the logger and auth session. Commands
// that talk to the API call it first.
func (a *app) prepare() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if cfg.NoColor || !colorTerminal(a.out, a.getenv) {
		color.NoColor = true
	}
	a.ui.verbose = a.verbose
	a.logger = newLogger(a.errOut, a.verbose || cfg.Debug)

	store, err := a.newStore()
	if err != nil {
		return err
	}
	flow := auth.BrowserFlow{
		BaseURL:    cfg.VersionedURL(),
		HTTPClient: a.httpClient,
		Out:        a.out,
		Timeout:    cfg.AuthTimeout,
		OpenURL:    a.openURL,
	}
	a.session = auth.NewSession(store, flow, auth.WithLogger(a.logger))
	return nil
}

func (a *app) apiClient() (*api.Client, error) {
	opts := []api.Option{api.WithLogger(a.logger)}
	if a.httpClient != nil {
		opts = append(opts, api.WithHTTPClient(a.httpClient))
	}
	return api.New(a.cfg.APIURL(), a.session, opts...)
}

func (a *app) subscriber() stream.Subscriber {
	if a.cfg.StreamTransport == config.TransportWebSocket {
		return stream.WebSocket{Logger: a.logger}
	}
	return stream.SSE{HTTPClient: a.httpClient, Logger: a.logger}
}
