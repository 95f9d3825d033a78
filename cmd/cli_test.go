package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
)

const fixture = `Data,WEEKDAY,Coding,Gym,Journal
2024-03-01,Fri,60,1,felt good
2024-03-02,Sat,,1,
2024-03-03,Sun,30,0,tired
`

// resetFlags restores every flag to its default so state does not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// setupHome isolates HOME and writes a config pointing at a data dir holding the fixture.
func setupHome(t *testing.T, extra string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	data := filepath.Join(home, "sheets")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(data, "march.csv"), []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	conf := filepath.Join(home, "config.yaml")
	body := "data_dir: " + data + "\n" + extra
	if err := os.WriteFile(conf, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return conf
}

func TestCLI_HabitsAndAnalytics(t *testing.T) {
	conf := setupHome(t, "")

	out := mustRun(t, "--config", conf, "habits")
	for _, name := range []string{"Coding", "Gym", "Journal"} {
		if !strings.Contains(out, name) {
			t.Fatalf("habits output missing %s:\n%s", name, out)
		}
	}

	var views []map[string]any
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "habits", "--json")), &views); err != nil {
		t.Fatalf("decode habits: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 habits, got %d", len(views))
	}

	var sum analytics.Summary
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "summary", "--json")), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.TotalHabits != 3 {
		t.Fatalf("expected 3 habits in summary, got %d", sum.TotalHabits)
	}

	out = mustRun(t, "--config", conf, "chart", "--anchor", "2024-03-03")
	if !strings.Contains(out, "2024-03-03 Sun") || !strings.Contains(out, "no data") || !strings.Contains(out, "30 min") {
		t.Fatalf("unexpected chart:\n%s", out)
	}

	var k analytics.KPIs
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "kpis", "--json")), &k); err != nil {
		t.Fatalf("decode kpis: %v", err)
	}
	if k.AvgDaily != 30 || k.MaxDaily != 60 {
		t.Fatalf("unexpected kpis: %+v", k)
	}

	report := filepath.Join(t.TempDir(), "out", "report.md")
	mustRun(t, "--config", conf, "report", "-o", report)
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(b), "[HABIT SUMMARY]") {
		t.Fatalf("unexpected report:\n%s", b)
	}

	if _, err := runCmd(t, "--config", conf, "kpis", "--anchor", "yesterday"); err == nil {
		t.Fatalf("expected invalid anchor error")
	}
}

func TestCLI_HabitSetHideRestore(t *testing.T) {
	conf := setupHome(t, "")

	out := mustRun(t, "--config", conf, "habit", "set", "gym", "--name", "Lifting", "--emoji", "🏋️")
	if !strings.Contains(out, "✓ Updated habit: 🏋️ Lifting") {
		t.Fatalf("unexpected set output: %q", out)
	}
	if out := mustRun(t, "--config", conf, "habits"); !strings.Contains(out, "Lifting") {
		t.Fatalf("rename not visible:\n%s", out)
	}

	mustRun(t, "--config", conf, "habit", "hide", "lifting")
	if out := mustRun(t, "--config", conf, "habits"); strings.Contains(out, "Lifting") {
		t.Fatalf("hidden habit still listed:\n%s", out)
	}
	if out := mustRun(t, "--config", conf, "habits", "--all"); !strings.Contains(out, "hidden") {
		t.Fatalf("--all should show hidden habits:\n%s", out)
	}

	id := habit.IdentityOf("Gym")
	mustRun(t, "--config", conf, "habit", "restore", id[:8])
	if out := mustRun(t, "--config", conf, "habits"); !strings.Contains(out, "Lifting") {
		t.Fatalf("restored habit missing:\n%s", out)
	}

	if _, err := runCmd(t, "--config", conf, "habit", "set", "Gym"); err == nil {
		t.Fatalf("expected error when no field is given")
	}
	if _, err := runCmd(t, "--config", conf, "habit", "hide", "Sleep"); !errors.Is(err, habit.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCLI_SQLiteStore(t *testing.T) {
	home := t.TempDir()
	conf := setupHome(t, "override_store: sqlite\noverrides_path: "+filepath.Join(home, "ov.db")+"\n")

	mustRun(t, "--config", conf, "habit", "set", "Journal", "--order=-1")
	var views []dashboard.HabitView
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "habits", "--json")), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if views[0].Header != "Journal" {
		t.Fatalf("expected Journal first after reorder, got %s", views[0].Header)
	}
	if _, err := os.Stat(filepath.Join(home, "ov.db")); err != nil {
		t.Fatalf("sqlite store not created: %v", err)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	conf := setupHome(t, "")

	mustRun(t, "--config", conf, "config", "set", "streak_gap_policy", "skip")
	out := mustRun(t, "--config", conf, "config", "set", "cors_origins", "http://a:1, http://b:2")
	if !strings.Contains(out, "Saved config") {
		t.Fatalf("unexpected output %q", out)
	}
	out = mustRun(t, "--config", conf, "config", "show")
	for _, want := range []string{"streak_gap_policy: skip", "cors_origins: http://a:1,http://b:2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "--config", conf, "config", "set", "streak_gap_policy", "sometimes"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := runCmd(t, "--config", conf, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestCLI_ThousandsSeparator(t *testing.T) {
	conf := setupHome(t, "thousands_separator: \".\"\n")
	data := filepath.Join(filepath.Dir(conf), "sheets")
	body := "Data,Coding\n2024-03-01,1.500\n2024-03-02,0.010\n"
	if err := os.WriteFile(filepath.Join(data, "march.csv"), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var views []dashboard.HabitView
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "habits", "--json")), &views); err != nil {
		t.Fatalf("decode habits: %v", err)
	}
	if len(views) != 1 || views[0].Kind != habit.KindTime {
		t.Fatalf("expected one time habit, got %+v", views)
	}

	var k analytics.KPIs
	if err := json.Unmarshal([]byte(mustRun(t, "--config", conf, "kpis", "--json", "--anchor", "2024-03-02")), &k); err != nil {
		t.Fatalf("decode kpis: %v", err)
	}
	if k.MaxDaily != 1500 {
		t.Fatalf("max daily = %v, want 1500", k.MaxDaily)
	}
}

func TestMatchHabit(t *testing.T) {
	views := []dashboard.HabitView{
		{Definition: habit.Definition{ID: "abcd1234", Header: "Gym", DisplayName: "Lifting"}},
		{Definition: habit.Definition{ID: "abce5678", Header: "Read", DisplayName: "Reading"}},
		{Definition: habit.Definition{ID: "ffff0000", Header: "Walk", DisplayName: "Reading"}},
	}
	cases := map[string]string{
		"abcd1234": "abcd1234",
		"gym":      "abcd1234",
		"LIFTING":  "abcd1234",
		"read":     "abce5678",
		"ffff":     "ffff0000",
	}
	for ref, want := range cases {
		got, err := matchHabit(views, ref)
		if err != nil || got != want {
			t.Fatalf("matchHabit(%q) = %q, %v; want %q", ref, got, err, want)
		}
	}
	for _, ref := range []string{"reading", "abc", "abc1", ""} {
		if _, err := matchHabit(views, ref); err == nil {
			t.Fatalf("matchHabit(%q) should fail", ref)
		}
	}
}

func TestSingleRune(t *testing.T) {
	for in, want := range map[string]rune{"": 0, ";": ';', "tab": '\t', `\t`: '\t', ",": ','} {
		got, err := singleRune("delimiter", in)
		if err != nil || got != want {
			t.Fatalf("singleRune(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := singleRune("delimiter", ";;"); err == nil {
		t.Fatalf("expected error for multi-character delimiter")
	}
}

func TestRenderChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderChart(&buf, analytics.ChartData{})
	if !strings.Contains(buf.String(), "no time-tracked habits") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
