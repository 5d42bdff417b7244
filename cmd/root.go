package cmd

import (
	"fmt"
	"io"

	"github.com/grovetools/linkwatch/cli"
	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/pkg/profiling"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the linkwatch command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"linkwatch",
		"Recompile projects when code behind their symlinked directories changes",
	)
	rootCmd.Long = `linkwatch scans each active project's code path for symlinked
subdirectories, watches the directories they point to and marks the
project's compilers for recompilation whenever a source file changes.

Examples:
  # Watch every active project in linkwatch.yml
  linkwatch watch

  # Show which symlinks would be watched
  linkwatch scan --json`

	profiler := profiling.New()
	profiler.AddFlags(rootCmd)
	rootCmd.PersistentPreRunE = profiler.Start
	rootCmd.PersistentPostRunE = profiler.Stop

	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewScanCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewLogsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("linkwatch"))

	cli.ApplyStyledHelpRecursive(rootCmd)
	cli.SetStyledHelpWithExtras(rootCmd, func(w io.Writer, p *cli.Palette) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, " "+p.Muted.Render("Config is read from the first linkwatch.yml found upwards from"))
		fmt.Fprintln(w, " "+p.Muted.Render("the working directory, then from "+config.GlobalConfigPath()))
	})
	return rootCmd
}
