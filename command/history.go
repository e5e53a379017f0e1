package command

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"forum-sync/database"
	"forum-sync/models"

	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("run history is disabled: set HISTORY_DB")

// openHistory opens the history database named by the configuration.
func (o *options) openHistory() (*models.PipelineConfig, *sql.DB, error) {
	cfg, _, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.HistoryDB == "" {
		return nil, nil, errHistoryDisabled
	}
	db, err := database.InitDB(cfg.HistoryDB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync runs",
		Long: `List recent sync runs from the history database (HISTORY_DB).
With --run, list the degraded and dropped threads of one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := opts.openHistory()
			if err != nil {
				return err
			}
			defer db.Close()

			if runID != "" {
				outcomes, err := database.RunOutcomes(db, runID)
				if err != nil {
					return err
				}
				printOutcomes(cmd, outcomes)
				return nil
			}

			runs, err := database.ListRuns(db, limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show thread outcomes of this run")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []models.RunRecord) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tACTIVE\tARCHIVED\tMERGED\tPOSTS\tDEGRADED\tDROPPED\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Active, r.Archived, r.Merged, r.Posts, r.Degraded, r.Dropped,
			status,
		)
	}
	w.Flush()
}

func printOutcomes(cmd *cobra.Command, outcomes []models.ThreadOutcome) {
	out := cmd.OutOrStdout()
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "Every thread of this run was synced without problems.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tOUTCOME\tREASON")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.ThreadID, o.Kind, o.Reason())
	}
	w.Flush()
}
