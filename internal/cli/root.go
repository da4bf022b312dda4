package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/config"
	"github.com/Stepan2222000/don/internal/repo"
)

// App — общий контекст команд: путь к конфигурации и режим вывода.
type App struct {
	ConfigPath string
	JSONOutput bool
}

// Config загружает конфигурацию.
func (a *App) Config() (*config.Config, error) {
	return config.Load(a.ConfigPath)
}

// OpenStore подключается к БД по конфигурации.
func (a *App) OpenStore(ctx context.Context, cfg *config.Config) (*repo.Store, error) {
	store, err := repo.Open(ctx, cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return store, nil
}

// Output возвращает форматтер вывода.
func (a *App) Output() *Output {
	return NewOutput(a.JSONOutput)
}

// NewRootCmd собирает корневую команду don.
func NewRootCmd(version string) *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:           "don",
		Short:         "don — campaign send scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", config.DefaultPath, "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&app.JSONOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newStartCmd(app),
		newStatusCmd(app),
		newStopCmd(app),
		newMigrateCmd(app),
		newImportChatsCmd(app),
		newImportMessagesCmd(app),
		newProfilesCmd(app),
		newProxiesCmd(app),
	)

	return rootCmd
}
