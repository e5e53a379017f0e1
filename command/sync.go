package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"forum-sync/bot"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and write the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}
}

func runSync(cmd *cobra.Command, opts *options) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	b, err := bot.NewBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	rc, err := b.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d posts\n", rc.Output, len(rc.Posts))
	return nil
}

func newScheduleCmd(opts *options) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Sync repeatedly on the SCHEDULE cron spec until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return bot.Run(cmd.Context(), cfg, log, !skipInitial)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Wait for the first tick instead of syncing at startup")
	return cmd
}

func newVersionCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "forum-sync %s (commit: %s)\n", version, commit)
		},
	}
}
