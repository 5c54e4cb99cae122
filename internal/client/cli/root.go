package cli

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/gophcal/internal/client/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the gophcal command tree around a.
func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "gophcal",
		Short: "Local-first encrypted calendar",
		Long: `gophcal keeps a calendar on this device and shares changes with your other
devices through a directory or an S3 bucket. Everything leaving the device is
encrypted with a key only your devices hold.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
				return nil
			}
			return a.configure(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.Close()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newInitCommand(a),
		newKeyCommand(a),
		newEventCommand(a),
		newLogCommand(a),
		newPushCommand(a),
		newPullCommand(a),
		newSyncCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := NewApp(in, out, errOut)
	defer a.Close()

	root := NewRootCommand(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		color.New(color.FgRed).Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}
