package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
	"github.com/KaramelBytes/habitloom-cli/internal/utils"
)

var (
	outJSON    bool
	anchorFlag string
	chartDays  int
	reportOut  string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show today's headline numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()
		sum, err := svc.Summary(ctx)
		if err != nil {
			return err
		}
		if outJSON {
			return printJSON(cmd.OutOrStdout(), sum)
		}
		renderSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Draw daily productive minutes",
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor, err := parseAnchor(anchorFlag)
		if err != nil {
			return err
		}
		if chartDays <= 0 {
			return fmt.Errorf("--days must be positive")
		}
		ctx := cmd.Context()
		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()
		data, err := svc.Chart(ctx, chartDays, anchor)
		if err != nil {
			return err
		}
		if outJSON {
			return printJSON(cmd.OutOrStdout(), data)
		}
		renderChart(cmd.OutOrStdout(), data)
		return nil
	},
}

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Compare this week's productivity with the week before",
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor, err := parseAnchor(anchorFlag)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()
		k, err := svc.KPIs(ctx, anchor)
		if err != nil {
			return err
		}
		if outJSON {
			return printJSON(cmd.OutOrStdout(), k)
		}
		renderKPIs(cmd.OutOrStdout(), k)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown digest of habits and productivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		anchor, err := parseAnchor(anchorFlag)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, release, err := newService(ctx)
		if err != nil {
			return err
		}
		defer release()
		md, err := svc.Report(ctx, anchor)
		if err != nil {
			return err
		}
		if reportOut == "" {
			_, err = io.WriteString(cmd.OutOrStdout(), md)
			return err
		}
		if err := utils.SafeWriteFile(reportOut, []byte(md)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", reportOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd, chartCmd, kpisCmd, reportCmd)
	for _, c := range []*cobra.Command{summaryCmd, chartCmd, kpisCmd} {
		c.Flags().BoolVar(&outJSON, "json", false, "print JSON instead of text")
	}
	for _, c := range []*cobra.Command{chartCmd, kpisCmd, reportCmd} {
		c.Flags().StringVar(&anchorFlag, "anchor", "", "last day of the window, YYYY-MM-DD (default: latest day in the data)")
	}
	chartCmd.Flags().IntVar(&chartDays, "days", 7, "window length in days")
	reportCmd.Flags().StringVarP(&reportOut, "output", "o", "", "write the report to a file instead of stdout")
}

func renderSummary(w io.Writer, s analytics.Summary) {
	fmt.Fprintln(w, titleStyle.Render("Habits on "+s.Anchor))
	fmt.Fprintf(w, "Tracked habits:      %d\n", s.TotalHabits)
	fmt.Fprintf(w, "Completed today:     %d (%.1f%%)\n", s.CompletedToday, s.CompletionRate)
	fmt.Fprintf(w, "Active streaks:      %d\n", s.ActiveStreaks)
	fmt.Fprintf(w, "Longest streak:      %d\n", s.LongestStreak)
	fmt.Fprintf(w, "Perfect-day record:  %d\n", s.PerfectDaysStreak)
}

func renderChart(w io.Writer, data analytics.ChartData) {
	if len(data.Categories) == 0 {
		fmt.Fprintln(w, "(no time-tracked habits)")
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Productive minutes, %d days ending %s", data.Window, data.Anchor)))
	var max float64
	for _, d := range data.Days {
		if d.Total != nil && *d.Total > max {
			max = *d.Total
		}
	}
	for _, d := range data.Days {
		label := fmt.Sprintf("%s %s", sheet.DayKey(d.Date), d.Date.Format("Mon"))
		if d.Total == nil {
			fmt.Fprintf(w, "%s  %s\n", label, dimStyle.Render("no data"))
			continue
		}
		var bars string
		for _, c := range data.Categories {
			bars += bar(d.Values[c], max, 40, data.Colors[c])
		}
		fmt.Fprintf(w, "%s  %s %.0f min\n", label, bars, *d.Total)
	}
	for _, c := range data.Categories {
		fmt.Fprintf(w, "%s %s\n", bar(1, 1, 1, data.Colors[c]), c)
	}
}

func renderKPIs(w io.Writer, k analytics.KPIs) {
	fmt.Fprintln(w, titleStyle.Render("7 days ending "+k.Anchor))
	fmt.Fprintf(w, "Avg daily:  %6.1f min  %s\n", k.AvgDaily, change(k.AvgDailyChange))
	fmt.Fprintf(w, "Best day:   %6.1f min  %s\n", k.MaxDaily, change(k.MaxDailyChange))
	fmt.Fprintf(w, "Total:      %6.1f h    %s\n", k.TotalHours, change(k.TotalHoursChange))
}

func change(pct float64) string {
	switch {
	case pct > 0:
		return okStyle.Render(fmt.Sprintf("▲ %.1f%%", pct))
	case pct < 0:
		return warnStyle.Render(fmt.Sprintf("▼ %.1f%%", -pct))
	}
	return dimStyle.Render("= 0.0%")
}
