// Package cli is the ideaforge command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRoot().Execute()
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	logFileSet bool
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "ideaforge",
		Short:         "Generate, critique and refine story ideas",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logFileSet = cmd.Flags().Changed("log-file")
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "error, warn, info, debug or superdebug")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "append logs to this file (empty disables)")

	root.AddCommand(
		IdeaCmd(g),
		ReplayCmd(g),
		GenresCmd(),
	)
	return root
}
