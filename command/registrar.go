package command

import "github.com/spf13/cobra"

// allCommands holds the constructors of every subcommand.
var allCommands = []func(*options) *cobra.Command{
	newSyncCmd,
	newScheduleCmd,
	newHistoryCmd,
	newExcludeCmd,
	newVersionCmd,
}
