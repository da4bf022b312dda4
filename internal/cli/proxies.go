package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Stepan2222000/don/internal/proxy"
)

func newProxiesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxies",
		Short: "Manage the proxy pool",
	}

	cmd.AddCommand(
		newProxiesSyncCmd(app),
		newProxiesListCmd(app),
	)

	return cmd
}

func newProxiesSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [file]",
		Short: "Import proxies from the reserve pool file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := app.Output()

			path := cfg.Proxy.PoolFile
			if len(args) == 1 {
				path = args[0]
			}

			urls, err := readListFile(path)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no proxies found in %s", path)
			}

			ctx := context.Background()
			store, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			registry := proxy.New(proxy.Config{
				Store:                 store,
				ChatNotFoundThreshold: cfg.Proxy.ChatNotFoundThreshold,
				MinAttemptsForCheck:   cfg.Proxy.MinAttemptsForCheck,
				UnblockTasksOnRotate:  cfg.Proxy.UnblockTasksOnRotate,
			})

			added, err := registry.Sync(ctx, urls)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Synced proxies: %d new of %d in file", added, len(urls)))
			return nil
		},
	}
	return cmd
}

func newProxiesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the proxy pool and assignments",
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

			registry := proxy.New(proxy.Config{Store: store})
			proxies, err := registry.List(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(proxies))
			for _, p := range proxies {
				profile := "-"
				if p.ProfileID != nil {
					profile = *p.ProfileID
				}
				healthy := "yes"
				if !p.IsHealthy {
					healthy = "no"
				}
				rows = append(rows, []string{maskProxy(p.ProxyURL), profile, healthy})
			}

			out.Print([]string{"PROXY", "PROFILE", "HEALTHY"}, rows, proxies)
			return nil
		},
	}
	return cmd
}

// maskProxy обрезает строку прокси до первых 20 символов для вывода;
// credential-часть, попавшая в эти 20 символов, не скрывается.
func maskProxy(url string) string {
	if len(url) <= 20 {
		return url
	}
	return url[:20] + "..."
}
