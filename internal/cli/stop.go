package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/repo"
	"github.com/Stepan2222000/don/internal/supervisor"
)

func newStopCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Send the shutdown signal to a running supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()

			pid, err := supervisor.ReadPidFile(cfg.Supervisor.PidFile)
			if err != nil {
				return fmt.Errorf("supervisor does not appear to be running: %w", err)
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return err
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal supervisor: %w", err)
			}

			out.Success(fmt.Sprintf("Sent SIGTERM to supervisor (pid %d)", pid))
			return nil
		},
	}
	return cmd
}

func newMigrateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()

			if err := repo.Migrate(cfg.Database.MigrateURL()); err != nil {
				return err
			}
			out.Success("Migrations applied")
			return nil
		},
	}
	return cmd
}
