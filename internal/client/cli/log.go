package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/changelog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLogCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show changes not pushed yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			entries := s.calendar.Log()
			if len(entries) == 0 {
				color.New(color.FgYellow).Fprintln(a.out, "Nothing to push")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tOBJECT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time.Local().Format(time.DateTime), typeColor(e.Type).Sprint(e.Type), e.ObjID)
			}
			return w.Flush()
		},
	}
}

func typeColor(t changelog.EntryType) *color.Color {
	switch t {
	case changelog.Create:
		return color.New(color.FgGreen)
	case changelog.Delete:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgCyan)
	}
}
