package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	register(func(a *app) *cobra.Command {
		return &cobra.Command{
			Use:   "login",
			Short: "Sign in with GitHub",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.prepare(); err != nil {
					return err
				}
				if a.session.Stored() {
					a.ui.successf("✅ You are already logged in!")
					return nil
				}
				if _, err := a.session.Login(cmd.Context()); err != nil {
					return err
				}
				a.ui.successf("✅ You are now logged in to hoist.")
				return nil
			},
		}
	})
}
