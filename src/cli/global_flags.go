package cli

import (
	"github.com/spf13/cobra"

	"volume-backup/src/config"
	"volume-backup/src/safety"
)

// addGlobalFlags adds the persistent flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to the configuration file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug detail, including engine output")
	cmd.PersistentFlags().String("log-file", "", "Append all log output to this file as well")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
}

// getSafetyOptions reads the global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{Yes: yes}
}
