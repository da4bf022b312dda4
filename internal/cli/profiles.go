package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/repo"
)

// profileRecord — строка файла импорта профилей: уже провалидированные
// записи внешнего источника (ProfileSource).
type profileRecord struct {
	ProfileID string `json:"profile_id"`
	Name      string `json:"name"`
}

func newProfilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage profiles",
	}

	cmd.AddCommand(
		newProfilesImportCmd(app),
		newProfilesListCmd(app),
	)

	return cmd
}

func newProfilesImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Register profiles from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var records []profileRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("profiles file must contain a JSON array: %w", err)
			}

			ctx := context.Background()
			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			profiles := repo.NewProfileRepo()
			err = store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
				for _, rec := range records {
					if rec.ProfileID == "" {
						return fmt.Errorf("profile record without profile_id")
					}
					if err := profiles.Upsert(ctx, q, rec.ProfileID, rec.Name); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Registered %d profiles", len(records)))
			return nil
		},
	}
	return cmd
}

func newProfilesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List eligible profiles",
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

			profiles, err := repo.NewProfileRepo().ListEligible(ctx, store.Pool(), 0)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{p.ProfileID, p.Name, fmt.Sprintf("%d", p.MessagesSentCurrentHour)})
			}

			out.Print([]string{"ID", "NAME", "SENT_THIS_HOUR"}, rows, profiles)
			return nil
		},
	}
	return cmd
}
