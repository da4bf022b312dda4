package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/repo"
)

func newImportChatsCmd(app *App) *cobra.Command {
	var group string
	var cycles int

	cmd := &cobra.Command{
		Use:   "import-chats <file>",
		Short: "Import chat targets for a group (one chat ref per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()

			chats, err := readListFile(args[0])
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				return fmt.Errorf("no chats found in %s", args[0])
			}

			// Бюджет циклов по умолчанию — max_cycles из конфигурации.
			if cycles <= 0 {
				cycles = cfg.Limits.MaxCycles
			}

			ctx := context.Background()
			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var count int
			tasks := repo.NewTaskRepo()
			err = store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
				count, err = tasks.Import(ctx, q, group, chats, cycles)
				return err
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Imported %d chats into group %s", count, group))
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "campaign group id")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "send budget per chat per run (default: limits.max_cycles)")
	cmd.MarkFlagRequired("group")

	return cmd
}

func newImportMessagesCmd(app *App) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "import-messages <file.json>",
		Short: "Import message templates for a group (JSON array of strings)",
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

			var texts []string
			if err := json.Unmarshal(data, &texts); err != nil {
				return fmt.Errorf("messages file must contain a JSON array of strings: %w", err)
			}
			if len(texts) == 0 {
				return fmt.Errorf("no messages found in %s", args[0])
			}

			ctx := context.Background()
			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var count int
			messages := repo.NewMessageRepo()
			err = store.WithTx(ctx, repo.ReadWrite, func(q repo.Querier) error {
				count, err = messages.Import(ctx, q, group, texts)
				return err
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Imported %d messages into group %s", count, group))
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "campaign group id")
	cmd.MarkFlagRequired("group")

	return cmd
}

// parseListLines разбирает построчный список, пропуская пустые строки
// и комментарии.
func parseListLines(data string) []string {
	var result []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result = append(result, line)
	}
	return result
}
