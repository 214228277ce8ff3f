package cli

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Version information is injected at build time via -ldflags; the defaults
// fall back to module build info.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func init() {
	register(func(a *app) *cobra.Command {
		return &cobra.Command{
			Use:   "version",
			Short: "Print the hoist version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				printVersion(cmd.OutOrStdout())
			},
		}
	})
}

func versionString() string {
	v := strings.TrimSpace(Version)
	if info, ok := debug.ReadBuildInfo(); ok {
		mv := strings.TrimSpace(info.Main.Version)
		if (v == "" || v == "dev") && mv != "" && mv != "(devel)" {
			v = mv
		}
	}
	if v == "" {
		v = "dev"
	}

	out := "hoist " + v
	if c := strings.TrimSpace(Commit); c != "" {
		out += " (" + c + ")"
	}
	if d := strings.TrimSpace(Date); d != "" {
		out += " " + d
	}
	return out
}

func printVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, versionString())
}
