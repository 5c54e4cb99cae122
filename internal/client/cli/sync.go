package cli

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPushCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Publish pending changes to the remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := a.syncService(ctx, s)
			if err != nil {
				return err
			}
			n, err := svc.Push(ctx)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Pushed %d changes\n", n)
			return nil
		},
	}
}

func newPullCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Apply changes published by other devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := a.syncService(ctx, s)
			if err != nil {
				return err
			}
			n, err := svc.Pull(ctx)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Applied %d changes\n", n)
			return nil
		},
	}
}

func newSyncCommand(a *App) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull, then push",
		Long: `Pulls changes from other devices, then pushes the local ones. With --watch
it repeats every --sync-interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := a.syncService(ctx, s)
			if err != nil {
				return err
			}

			round := func(ctx context.Context) error {
				pulled, pushed, err := svc.Sync(ctx)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(a.out, "✓ Pulled %d, pushed %d\n", pulled, pushed)
				return nil
			}

			if !watch {
				return round(ctx)
			}

			ticker := time.NewTicker(a.cfg.SyncInterval)
			defer ticker.Stop()
			for {
				if err := round(ctx); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					a.logger.Warn(ctx, "sync failed", "error", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing every --sync-interval")
	return cmd
}
