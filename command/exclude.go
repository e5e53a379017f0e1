package command

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"forum-sync/database"

	"github.com/spf13/cobra"
)

func newExcludeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage threads that are left out of the snapshot",
	}

	var reason string
	add := &cobra.Command{
		Use:   "add <thread-id>...",
		Short: "Exclude threads from future syncs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, id := range args {
				if err := database.AddThreadToExclusionList(db, cfg.ForumChannelID, id, reason); err != nil {
					return fmt.Errorf("failed to exclude thread %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Excluded thread %s\n", id)
			}
			return nil
		},
	}
	add.Flags().StringVarP(&reason, "reason", "r", "", "Why the thread is excluded")

	remove := &cobra.Command{
		Use:   "remove <thread-id>...",
		Short: "Include previously excluded threads again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, id := range args {
				removed, err := database.RemoveThreadFromExclusionList(db, cfg.ForumChannelID, id)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Thread %s is no longer excluded\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Thread %s was not excluded\n", id)
				}
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List excluded threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := database.ListExclusions(db, cfg.ForumChannelID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No threads excluded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tSINCE\tREASON")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ThreadID, e.Timestamp.Local().Format(time.DateTime), strings.TrimSpace(e.Reason))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}
