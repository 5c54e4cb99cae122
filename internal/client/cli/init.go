package cli

import (
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newInitCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the key of this device",
		Long: `Creates a new random key for this device and protects it with a passphrase.

Devices that should read each other's changes must share one key: run init on
the first device, then "gophcal key export" there and "gophcal key import" on
the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ks, err := a.keyService(ctx)
			if err != nil {
				return err
			}

			pass, err := a.passphrase(true)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			c, err := ks.Init(ctx, pass)
			if err != nil {
				return err
			}
			c.Wipe()

			id, err := ks.DeviceID(ctx)
			if err != nil {
				return err
			}
			a.logger.Info(ctx, "device initialized", "device", id, "suite", a.cfg.Suite)
			color.New(color.FgGreen).Fprintf(a.out, "✓ Initialized device %s\n", id)
			return nil
		},
	}
}
