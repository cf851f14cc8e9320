package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/scraper"
)

func newJobsCommand(a *app) *cobra.Command {
	var req job.ListJobsRequest

	cmd := &cobra.Command{
		Use:   "jobs [ID]",
		Short: "Lists download jobs, or shows one job by ID.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			svc := job.NewService(jobrepo.NewRepository(db.DB), string(scraper.TechnicalHistory))

			var jobs []job.Job
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", args[0])
				}
				j, err := svc.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				jobs = append(jobs, *j)
			} else {
				jobs, err = svc.List(cmd.Context(), req)
				if err != nil {
					return err
				}
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Symbol", "Range", "Status", "Kind", "Records", "Updated", "Error"})
			for _, j := range jobs {
				t.AppendRow(table.Row{
					j.ID,
					j.Symbol,
					j.StartDate.Format(history.DateFormat) + ".." + j.EndDate.Format(history.DateFormat),
					j.Status,
					j.Kind,
					j.RecordsCount,
					j.UpdatedAt.Format("2006-01-02 15:04:05"),
					j.Error,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Symbol, "symbol", "s", "", "only jobs of this symbol")
	cmd.Flags().StringVar(&req.Status, "status", "", "only jobs in this status (pending|running|completed|failed)")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "maximum number of jobs, newest first (default 100)")
	return cmd
}
