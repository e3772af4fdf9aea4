// Package cli implements the e2ekit command-line surface: session bootstrap,
// outcome-store management, and configuration inspection. Test execution
// itself belongs to `go test`; this binary covers everything a run needs
// before and after the suite.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
)

var rootCmd = &cobra.Command{
	Use:           "e2ekit",
	Short:         "Browser end-to-end test harness utilities",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	obs.Init()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		return errs.ExitCode(errs.CodeOf(err))
	}
	return 0
}
