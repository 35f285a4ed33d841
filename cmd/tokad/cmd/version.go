package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// appName is the user-agent/handshake name baked into version strings.
const appName = "tokad"

// gitCommit is the short git commit hash (8 chars) embedded by Go's
// automatic VCS stamping (Go 1.18+, no -ldflags required). It falls
// back to "dev" when build info is unavailable, e.g. under `go test`
// or a non-git build.
var gitCommit = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}()

// fullVersion returns "tokad/<commit>" for use as rootCmd's --version
// output and in the version subcommand's first line.
func fullVersion() string {
	return appName + "/" + gitCommit
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", fullVersion())
		fmt.Fprintf(cmd.OutOrStdout(), "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
