package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
)

var (
	habitsAll  bool
	habitsJSON bool

	setName     string
	setEmoji    string
	setColor    string
	setOrder    int
	setPersonal bool
)

var habitsCmd = &cobra.Command{
	Use:   "habits",
	Short: "List habits with their streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()
		views, err := svc.ListHabits(ctx, habitsAll)
		if err != nil {
			return err
		}
		if habitsJSON {
			return printJSON(cmd.OutOrStdout(), views)
		}
		renderHabits(cmd.OutOrStdout(), views)
		return nil
	},
}

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Rename, reorder, hide or restore a habit",
}

var habitSetCmd = &cobra.Command{
	Use:   "set <habit>",
	Short: "Change how a habit is presented",
	Long:  "Change the display name, emoji, color, order or privacy of a habit. <habit> is an id, an id prefix or a column name.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p habit.Patch
		f := cmd.Flags()
		if f.Changed("name") {
			p.DisplayName = &setName
		}
		if f.Changed("emoji") {
			p.Icon = &setEmoji
		}
		if f.Changed("color") {
			p.Color = &setColor
		}
		if f.Changed("order") {
			p.SortOrder = &setOrder
		}
		if f.Changed("personal") {
			p.IsPersonal = &setPersonal
		}
		if p == (habit.Patch{}) {
			return fmt.Errorf("nothing to change: pass at least one of --name, --emoji, --color, --order, --personal")
		}
		return mutateHabit(cmd, args[0], "Updated", func(ctx context.Context, svc *dashboard.Service, id string) (habit.Definition, error) {
			return svc.UpdateHabit(ctx, id, p)
		})
	},
}

var habitHideCmd = &cobra.Command{
	Use:   "hide <habit>",
	Short: "Hide a habit from the dashboard (its data is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateHabit(cmd, args[0], "Hidden", func(ctx context.Context, svc *dashboard.Service, id string) (habit.Definition, error) {
			return svc.DeleteHabit(ctx, id)
		})
	},
}

var habitRestoreCmd = &cobra.Command{
	Use:   "restore <habit>",
	Short: "Show a hidden habit again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateHabit(cmd, args[0], "Restored", func(ctx context.Context, svc *dashboard.Service, id string) (habit.Definition, error) {
			return svc.RestoreHabit(ctx, id)
		})
	},
}

func init() {
	rootCmd.AddCommand(habitsCmd)
	habitsCmd.Flags().BoolVar(&habitsAll, "all", false, "include hidden habits")
	habitsCmd.Flags().BoolVar(&habitsJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(habitCmd)
	habitCmd.AddCommand(habitSetCmd, habitHideCmd, habitRestoreCmd)
	habitSetCmd.Flags().StringVar(&setName, "name", "", "display name")
	habitSetCmd.Flags().StringVar(&setEmoji, "emoji", "", "icon shown next to the name")
	habitSetCmd.Flags().StringVar(&setColor, "color", "", "chart color, e.g. #3b82f6")
	habitSetCmd.Flags().IntVar(&setOrder, "order", 0, "sort position (lower first)")
	habitSetCmd.Flags().BoolVar(&setPersonal, "personal", false, "mark as personal")
}

type habitMutation func(ctx context.Context, svc *dashboard.Service, id string) (habit.Definition, error)

func mutateHabit(cmd *cobra.Command, ref, verb string, fn habitMutation) error {
	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()
	views, err := svc.ListHabits(ctx, true)
	if err != nil {
		return err
	}
	id, err := matchHabit(views, ref)
	if err != nil {
		return err
	}
	def, err := fn(ctx, svc, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s habit: %s %s (%s)\n", verb, def.Icon, def.DisplayName, shortID(def.ID))
	return nil
}

// matchHabit resolves a user reference to a habit id: an exact id, a column header or display
// name (case-insensitive), or a unique id prefix of at least 4 characters.
func matchHabit(views []dashboard.HabitView, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty habit reference")
	}
	for _, v := range views {
		if v.ID == ref {
			return v.ID, nil
		}
	}
	var named []string
	for _, v := range views {
		if strings.EqualFold(v.Header, ref) || strings.EqualFold(v.DisplayName, ref) {
			named = append(named, v.ID)
		}
	}
	if len(named) == 1 {
		return named[0], nil
	}
	if len(named) > 1 {
		return "", fmt.Errorf("%q matches %d habits, use the id", ref, len(named))
	}
	if len(ref) >= 4 {
		var prefixed []string
		for _, v := range views {
			if strings.HasPrefix(v.ID, strings.ToLower(ref)) {
				prefixed = append(prefixed, v.ID)
			}
		}
		if len(prefixed) == 1 {
			return prefixed[0], nil
		}
		if len(prefixed) > 1 {
			return "", fmt.Errorf("id prefix %q is ambiguous", ref)
		}
	}
	return "", fmt.Errorf("%w: %s", habit.ErrNotFound, ref)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderHabits(w io.Writer, views []dashboard.HabitView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "(no habits found)")
		return
	}
	for _, v := range views {
		name := nameStyle.Render(strings.TrimSpace(v.Icon + " " + v.DisplayName))
		line := fmt.Sprintf("%s  %s %-11s", dimStyle.Render(shortID(v.ID)), name, v.Kind)
		if v.Kind.Trackable() {
			line += fmt.Sprintf("  streak %d (best %d)", v.CurrentStreak, v.BestStreak)
			if v.CompletedToday {
				line += "  " + okStyle.Render("✓ today")
			}
		}
		if v.IsPersonal {
			line += dimStyle.Render("  personal")
		}
		if !v.Active {
			line += warnStyle.Render("  hidden")
		}
		fmt.Fprintln(w, line)
	}
}
