package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newKeyCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Move the device key between devices",
	}
	cmd.AddCommand(newKeyExportCommand(a), newKeyImportCommand(a))
	return cmd
}

func newKeyExportCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the device key in hex",
		Long: `Prints the device key in hex. Anyone holding it can read your calendar;
copy it to your other devices over a channel you trust.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ks, err := a.keyService(ctx)
			if err != nil {
				return err
			}
			pass, err := a.passphrase(false)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			key, err := ks.Export(ctx, pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, key)
			return nil
		},
	}
}

func newKeyImportCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import [hex-key]",
		Short: "Initialize this device with a key from another device",
		Long: `Initializes this device with a key exported by "gophcal key export" on
another device. The key is read from the argument, or prompted for when absent.
The passphrase protects it on this device only and may differ between devices.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ks, err := a.keyService(ctx)
			if err != nil {
				return err
			}

			var hexKey string
			if len(args) == 1 {
				hexKey = args[0]
			} else {
				hexKey, err = GetSimpleText(a.in, "Key (hex)", a.errOut)
				if err != nil {
					return err
				}
			}

			pass, err := a.passphrase(true)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pass)

			c, err := ks.Import(ctx, pass, strings.TrimSpace(hexKey))
			if err != nil {
				return err
			}
			c.Wipe()

			id, err := ks.DeviceID(ctx)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Imported key, device %s\n", id)
			return nil
		},
	}
}
