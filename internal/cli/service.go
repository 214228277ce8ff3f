package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgeovany/hoist/internal/project"
)

func init() {
	register(func(a *app) *cobra.Command {
		svc := &cobra.Command{
			Use:   "service",
			Short: "Manage services",
		}

		var yes bool
		del := &cobra.Command{
			Use:     "delete [serviceId]",
			Aliases: []string{"rm"},
			Short:   "Delete a service",
			Long:    "Delete a service. Without an argument the service in the project's .hoist file is used.",
			Args:    cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				return a.runServiceDelete(cmd.Context(), id, yes)
			},
		}
		del.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
		svc.AddCommand(del)
		return svc
	})
}

func (a *app) runServiceDelete(ctx context.Context, id string, yes bool) error {
	if err := a.prepare(); err != nil {
		return err
	}
	cwd, err := a.getwd()
	if err != nil {
		return err
	}
	root := project.FindRoot(cwd)

	if id == "" && root != "" {
		p, ok, err := project.ReadPointer(root)
		switch {
		case err != nil:
			a.ui.warnf("⚠️  %v", err)
			a.logger.Debug("pointer ignored", "root", root, "err", err)
		case ok:
			id = p.ServiceID
			a.ui.note("Using service ID from "+project.PointerFile+" file:", id)
		}
	}
	if id == "" {
		return errors.New("service ID is required: hoist service delete <serviceId>")
	}

	if !yes {
		ok, err := confirm(ctx, a.in, a.out, fmt.Sprintf("Are you sure you want to delete service %s?", id))
		if err != nil {
			return err
		}
		if !ok {
			a.ui.infof("Deletion cancelled")
			return nil
		}
	}

	client, err := a.apiClient()
	if err != nil {
		return err
	}
	a.ui.infof("Deleting service: %s...", id)
	msg, err := client.DeleteService(ctx, id)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Service " + id + " deleted"
	}
	a.ui.successf("✅ %s", msg)

	if root == "" {
		return nil
	}
	p, ok, err := project.ReadPointer(root)
	if err != nil || !ok || p.ServiceID != id {
		return nil
	}
	removed, err := project.DeletePointer(root)
	switch {
	case err != nil:
		a.ui.warnf("⚠️  Could not remove %s file: %v", project.PointerFile, err)
	case removed:
		a.ui.successf("✅ Removed %s file (service was deleted)", project.PointerFile)
	}
	return nil
}
