package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	register(func(a *app) *cobra.Command {
		return &cobra.Command{
			Use:   "logout",
			Short: "Remove the stored credential",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				if err := a.prepare(); err != nil {
					return err
				}
				// expired credentials are removed too
				stored := a.session.Stored()
				if err := a.session.Logout(); err != nil {
					return err
				}
				if !stored {
					a.ui.infof("You are not logged in.")
					return nil
				}
				a.ui.successf("✅ Successfully logged out from hoist.")
				return nil
			},
		}
	})
}
