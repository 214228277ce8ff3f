package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mgeovany/hoist/internal/deploy"
	"github.com/mgeovany/hoist/internal/mirror"
	"github.com/mgeovany/hoist/internal/project"
)

type deployOptions struct {
	path    string
	service string
	machine string
	name    string
}

func init() {
	register(func(a *app) *cobra.Command {
		var opts deployOptions
		cmd := &cobra.Command{
			Use:   "deploy [machineId]",
			Short: "Package the current project and deploy it",
			Long: `Package the project directory into an archive, upload it and follow the
deployment until it finishes.

The target service comes from --service, then the .hoist file in the project
root. New services are named by --name, then package.json.`,
			Args: cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if opts.machine == "" && len(args) == 1 {
					opts.machine = args[0]
				}
				return a.runDeploy(cmd.Context(), opts)
			},
		}
		f := cmd.Flags()
		f.StringVarP(&opts.path, "path", "p", "", "directory to deploy (default: project root or current directory)")
		f.StringVarP(&opts.service, "service", "s", "", "service ID to redeploy")
		f.StringVarP(&opts.machine, "machine", "m", "", "machine ID to deploy to")
		f.StringVarP(&opts.name, "name", "n", "", "name for a new service")
		return cmd
	})
}

func (a *app) runDeploy(ctx context.Context, opts deployOptions) error {
	if err := a.prepare(); err != nil {
		return err
	}
	cwd, err := a.getwd()
	if err != nil {
		return err
	}
	root := project.FindRoot(cwd)
	a.ui.verbosef("Project root: %s", root)

	id := project.ResolveIdentity(project.Flags{
		MachineID:   opts.machine,
		ServiceID:   opts.service,
		ServiceName: opts.name,
	}, root, func(err error) {
		a.ui.warnf("⚠️  %v", err)
	})
	if id.ServiceIDFromConfig {
		a.ui.note("Using service ID from "+project.PointerFile+" file:", id.ServiceID)
	}
	if id.NameFromManifest {
		a.ui.note("Using service name from "+project.ManifestFile+":", id.ServiceName)
	}

	dp, err := project.ResolveDeployPath(opts.path, cwd, root)
	if err != nil {
		if errors.Is(err, project.ErrPathOutsideWorkdir) {
			a.ui.errorf("Use -p with a directory inside %s", cwd)
		}
		return err
	}
	if dp.AboveWorkdir {
		a.ui.warnf("\n⚠️  Warning: Deploying from parent directory: %s", dp.Dir)
		a.ui.warnf("   Use -p option to explicitly specify a different path")
	}

	// Sign in before packaging so a login prompt never waits on a finished archive.
	if _, err := a.session.Token(ctx); err != nil {
		return err
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}

	cfg := deploy.Config{
		Uploader:   client,
		Subscriber: a.subscriber(),
		Tokens:     a.session,
		Selector:   machinePrompt{in: a.in, out: a.out},
		APIURL:     a.cfg.APIURL(),
		Out:        a.out,
		Verbose:    a.verbose,
		Animate:    !a.cfg.NoSpinner && isTTY(a.out),
		TempDir:    a.cfg.TempDir,
		Logger:     a.logger,
	}
	if a.cfg.Archive.Enabled() {
		m, err := mirror.New(a.cfg.Archive, mirror.Credentials(a.getenv))
		if err != nil {
			a.ui.warnf("⚠️  Archive mirror disabled: %v", err)
		} else {
			cfg.Mirror = m
		}
	}

	ctrl, err := deploy.New(cfg)
	if err != nil {
		return err
	}

	projectRoot := root
	if projectRoot == "" {
		projectRoot = dp.Dir
	}
	outcome, err := ctrl.Run(ctx, deploy.Request{Dir: dp.Dir, ProjectRoot: projectRoot, Identity: id})
	if err != nil {
		if errors.Is(err, deploy.ErrDeployFailed) {
			// the renderer already printed the failure
			return reported{err}
		}
		return err
	}
	a.logger.Debug("deploy finished", "state", outcome.State.String(), "service", outcome.ServiceID, "assumed", outcome.AssumedSuccess)
	return nil
}
