package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Accepted --start / --day layouts, tried in order. Times without a zone are
// local.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use YYYY-MM-DD HH:MM or RFC 3339)", s)
}

func newEventCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "event",
		Aliases: []string{"events", "ev"},
		Short:   "Manage calendar events",
	}
	cmd.AddCommand(
		newEventAddCommand(a),
		newEventListCommand(a),
		newEventUpdateCommand(a),
		newEventDeleteCommand(a),
		newEventRepeatCommand(a),
	)
	return cmd
}

// eventFlags are the editable fields shared by add and update.
type eventFlags struct {
	name, desc, location, start string
	duration                    time.Duration
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "event name")
	cmd.Flags().StringVar(&f.desc, "desc", "", `description ("-" to type several lines)`)
	cmd.Flags().StringVarP(&f.location, "location", "l", "", "where the event takes place")
	cmd.Flags().StringVarP(&f.start, "start", "s", "", "start time, YYYY-MM-DD HH:MM in local time or RFC 3339")
	cmd.Flags().DurationVar(&f.duration, "duration", domain.DefaultEventLength, "how long the event lasts")
}

// apply copies the flags set on cmd into e.
func (f *eventFlags) apply(a *App, cmd *cobra.Command, e *domain.Event) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		e.Name = f.name
	}
	if changed("desc") {
		desc := f.desc
		if desc == "-" {
			var err error
			if desc, err = GetMultiline(a.in, "Description", a.errOut); err != nil {
				return err
			}
		}
		e.Desc = desc
	}
	if changed("location") {
		e.Location = f.location
	}

	length := e.Duration()
	if changed("duration") {
		length = f.duration
	}
	if changed("start") {
		start, err := parseTime(f.start, time.Local)
		if err != nil {
			return err
		}
		e.Start = start
	}
	e.End = e.Start.Add(length)
	return nil
}

func newEventAddCommand(a *App) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event",
		Example: `  gophcal event add --name "Team sync" --start "2024-03-04 09:00" --duration 30m
  gophcal event add -n Dentist -s 2024-03-05T14:00:00+02:00 -l "Main St 1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			e := domain.NewEvent("", "", "")
			if err := f.apply(a, cmd, &e); err != nil {
				return err
			}
			e, err = s.calendar.AddEvent(ctx, e)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Added %s\n", e.ID)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newEventListCommand(a *App) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var events []domain.Event
			if day != "" {
				d, err := parseTime(day, time.UTC)
				if err != nil {
					return err
				}
				events = s.calendar.EventsByDay(d)
			} else {
				events = s.calendar.Events()
			}

			if len(events) == 0 {
				color.New(color.FgYellow).Fprintln(a.out, "No events")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTART\tEND\tNAME\tLOCATION\tSYNCED")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID,
					e.Start.Local().Format("2006-01-02 15:04"),
					e.End.Local().Format("15:04"),
					e.Name,
					e.Location,
					yesNo(e.Synchronised),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "only events starting on this UTC day (YYYY-MM-DD)")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func newEventUpdateCommand(a *App) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an event",
		Long:  "Changes the fields given as flags and keeps the others.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			e, ok := s.calendar.Event(args[0])
			if !ok {
				return fmt.Errorf("event %s: %w", args[0], common.ErrNotFound)
			}
			if err := f.apply(a, cmd, &e); err != nil {
				return err
			}
			if _, err := s.calendar.UpdateEvent(ctx, e); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Updated %s\n", e.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEventDeleteCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an event",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.calendar.DeleteEvent(ctx, args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Deleted %s\n", args[0])
			return nil
		},
	}
}

func newEventRepeatCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "repeat <id> <weeks>",
		Short: "Copy an event to the following weeks",
		Long:  "Adds one copy of the event per week for the given number of weeks.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("weeks must be a number: %w", err)
			}

			ctx := cmd.Context()
			s, err := a.unlock(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			added, err := s.calendar.RepeatEvent(ctx, args[0], n)
			if err != nil {
				return err
			}
			for _, e := range added {
				fmt.Fprintf(a.out, "%s\t%s\n", e.ID, e.Start.Local().Format("2006-01-02 15:04"))
			}
			color.New(color.FgGreen).Fprintf(a.out, "✓ Added %d copies\n", len(added))
			return nil
		},
	}
}
