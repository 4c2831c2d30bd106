package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/stats"
	"github.com/verte-zerg/quiver/internal/statsui"
)

const (
	statsPlotHeight = 8
	statsTopN       = 3
)

var (
	statsPlain     bool
	statsJSON      bool
	statsKind      string
	statsSince     string
	statsLast      int
	statsCompleted bool
	statsNoCache   bool
	statsDistances []float64
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print text instead of opening the TUI")
	cmd.Flags().BoolVar(&statsJSON, "json", false, "print the summary as JSON")
	cmd.Flags().StringVar(&statsKind, "kind", "", "session kind filter (practice or tournament)")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&statsCompleted, "completed", false, "only count completed sessions")
	cmd.Flags().BoolVar(&statsNoCache, "no-cache", false, "recompute instead of using cached stats")
	cmd.Flags().Float64SliceVar(&statsDistances, "distances", nil, "distance buckets in metres (default 18,20,30,50,70,90)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	sinceTime, err := parseSince(statsSince)
	if err != nil {
		return err
	}
	var kind model.SessionKind
	if statsKind != "" {
		if kind, err = model.ParseSessionKind(statsKind); err != nil {
			return fmt.Errorf("--kind: %w", err)
		}
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	distances := statsDistances
	if !cmd.Flags().Changed("distances") && len(a.file.Stats.Distances) > 0 {
		distances = a.file.Stats.Distances
	}
	cfg := model.StatsConfig{
		Owner:     a.owner,
		Kind:      kind,
		Distances: distances,
		Since:     sinceTime,
		Last:      statsLast,
		Completed: statsCompleted,
	}

	c := a.cache
	if statsNoCache {
		c = nil
	}

	if !statsPlain && !statsJSON {
		m := statsui.NewModel(a.repo, c, cfg)
		program := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}

	report, hit, err := c.Report(cmd.Context(), a.repo, cfg)
	if err != nil {
		return err
	}
	if hit {
		a.logger.Debug("stats served from cache", "owner", a.owner)
	}
	return printReport(cmd, report, statsJSON)
}

func printReport(cmd *cobra.Command, report stats.Report, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, report.Summary)
	}
	if err := stats.RenderSummary(out, report.Summary); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderTrend(out, report.Sessions, 0, statsPlotHeight, false); err != nil {
		return fmt.Errorf("failed to render trend: %w", err)
	}
	top := stats.TopSessions(report.Sessions, statsTopN)
	if len(top) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out, "\nBest sessions"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return stats.RenderSessionList(out, top)
}
