package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/domain"
	"github.com/Stepan2222000/don/internal/repo"
)

func newStatusCmd(app *App) *cobra.Command {
	var group string
	var days int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task and profile counters for a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()
			ctx := context.Background()

			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			tasks := repo.NewTaskRepo()
			stats, err := tasks.Stats(ctx, store.Pool(), group)
			if err != nil {
				return err
			}

			daily, err := repo.NewStatsRepo().DailyAll(ctx, store.Pool(), days)
			if err != nil {
				return err
			}

			if app.JSONOutput {
				out.JSON(map[string]any{
					"tasks":    stats,
					"profiles": daily,
				})
				return nil
			}

			out.Table(
				[]string{"TOTAL", "PENDING", "IN_PROGRESS", "COMPLETED", "BLOCKED", "SUCCESS", "FAILED"},
				[][]string{{
					strconv.Itoa(stats.Total),
					strconv.Itoa(stats.Pending),
					strconv.Itoa(stats.InProgress),
					strconv.Itoa(stats.Completed),
					strconv.Itoa(stats.Blocked),
					strconv.Itoa(stats.TotalSuccess),
					strconv.Itoa(stats.TotalFailed),
				}},
			)

			if len(daily) > 0 {
				fmt.Println()
				out.Table(
					[]string{"PROFILE", "DATE", "SENT", "OK", "FAILED"},
					dailyRows(daily),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "campaign group id")
	cmd.Flags().IntVar(&days, "days", 1, "days of per-profile stats")
	cmd.MarkFlagRequired("group")

	return cmd
}

func dailyRows(daily []domain.ProfileDailyStats) [][]string {
	rows := make([][]string, 0, len(daily))
	for _, s := range daily {
		rows = append(rows, []string{
			s.ProfileID,
			s.Date.Format("2006-01-02"),
			strconv.Itoa(s.MessagesSent),
			strconv.Itoa(s.SuccessfulSends),
			strconv.Itoa(s.FailedSends),
		})
	}
	return rows
}
