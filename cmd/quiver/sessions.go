package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/scoring"
	"github.com/verte-zerg/quiver/internal/stats"
	"github.com/verte-zerg/quiver/internal/tui"
)

var (
	newBow      string
	newDistance float64
	newEnds     int
	newArrows   int
	newKind     string
	newName     string
	newSurname  string
	newScore    bool

	sessionsJSON bool
	showJSON     bool
	completeOnly bool
)

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new scoring session",
		Args:  cobra.NoArgs,
		RunE:  runNewCmd,
	}
	cmd.Flags().StringVar(&newBow, "bow", defaultBow, "bow type (compound, recurve or barebow)")
	cmd.Flags().Float64Var(&newDistance, "distance", defaultDistance, "distance in metres")
	cmd.Flags().IntVar(&newEnds, "ends", defaultEnds, "number of ends")
	cmd.Flags().IntVar(&newArrows, "arrows", defaultArrows, "arrows per end")
	cmd.Flags().StringVar(&newKind, "kind", defaultKind, "session kind (practice or tournament)")
	cmd.Flags().StringVar(&newName, "name", "", "archer first name")
	cmd.Flags().StringVar(&newSurname, "surname", "", "archer surname")
	cmd.Flags().BoolVar(&newScore, "score", false, "open the scoring TUI after creating the session")
	return cmd
}

func runNewCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	applyStringConfig(cmd, "bow", &newBow, a.file.Archer.Bow)
	applyStringConfig(cmd, "name", &newName, a.file.Archer.Name)
	applyStringConfig(cmd, "surname", &newSurname, a.file.Archer.Surname)
	applyFloatConfig(cmd, "distance", &newDistance, a.file.Session.Distance)
	applyIntConfig(cmd, "ends", &newEnds, a.file.Session.Ends)
	applyIntConfig(cmd, "arrows", &newArrows, a.file.Session.Arrows)
	applyStringConfig(cmd, "kind", &newKind, a.file.Session.Kind)

	bow, err := model.ParseBowType(newBow)
	if err != nil {
		return fmt.Errorf("--bow: %w", err)
	}
	kind, err := model.ParseSessionKind(newKind)
	if err != nil {
		return fmt.Errorf("--kind: %w", err)
	}
	cfg := model.Config{
		Owner:         a.owner,
		ArcherName:    strings.TrimSpace(newName),
		ArcherSurname: strings.TrimSpace(newSurname),
		BowType:       bow,
		Distance:      newDistance,
		TotalEnds:     newEnds,
		ArrowsPerEnd:  newArrows,
		Kind:          kind,
	}
	if err := validateNewSession(cfg); err != nil {
		return err
	}

	s, err := a.repo.CreateSession(cmd.Context(), scoring.NewSession{
		OwnerID:       cfg.Owner,
		ArcherName:    cfg.ArcherName,
		ArcherSurname: cfg.ArcherSurname,
		BowType:       cfg.BowType,
		Distance:      cfg.Distance,
		TotalEnds:     cfg.TotalEnds,
		ArrowsPerEnd:  cfg.ArrowsPerEnd,
		Kind:          cfg.Kind,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s %s, %d x %d)\n",
		s.ID, stats.FormatDistance(s.Distance), s.Kind, s.TotalEnds, s.ArrowsPerEnd); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if newScore {
		return runScoringTUI(a, s)
	}
	return nil
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().BoolVar(&sessionsJSON, "json", false, "print sessions as JSON")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.repo.ListSessionsForOwner(cmd.Context(), a.owner)
	if err != nil {
		return err
	}
	if sessionsJSON {
		if sessions == nil {
			sessions = []model.Session{}
		}
		return writeJSON(cmd.OutOrStdout(), sessions)
	}
	return stats.RenderSessionList(cmd.OutOrStdout(), sessions)
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session scorecard",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().BoolVar(&showJSON, "json", false, "print the session as JSON")
	return cmd
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	if showJSON {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	return stats.RenderScorecard(cmd.OutOrStdout(), s)
}

func newArrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrow",
		Short: "Record, clear or undo arrows. Ends and arrows are numbered from 1",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <id> <end> <arrow> <value>",
		Short: "Set one arrow (1-10, X or M)",
		Args:  cobra.ExactArgs(4),
		RunE:  runArrowSetCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <id> <end> <arrow>",
		Short: "Clear one arrow",
		Args:  cobra.ExactArgs(3),
		RunE:  runArrowClearCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "undo <id>",
		Short: "Clear the last scored arrow",
		Args:  cobra.ExactArgs(1),
		RunE:  runArrowUndoCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <id> <value>...",
		Short: "Record arrows into the next unscored slots",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runArrowAddCmd,
	})
	return cmd
}

func runArrowSetCmd(cmd *cobra.Command, args []string) error {
	value, err := model.ParseArrowScore(args[3])
	if err != nil {
		return err
	}
	if !value.IsSet() {
		return fmt.Errorf("use `quiver arrow clear` to clear an arrow")
	}
	return setArrow(cmd, args[0], args[1], args[2], value)
}

func runArrowClearCmd(cmd *cobra.Command, args []string) error {
	return setArrow(cmd, args[0], args[1], args[2], model.Unset)
}

func setArrow(cmd *cobra.Command, idArg, endArg, arrowArg string, value model.ArrowScore) error {
	pos, err := parsePosition(endArg, arrowArg)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, idArg)
	if err != nil {
		return err
	}
	if value.IsSet() {
		s, err = a.repo.SetArrow(cmd.Context(), s.ID, pos.End, pos.Arrow, value)
	} else {
		s, err = a.repo.ClearArrow(cmd.Context(), s.ID, pos.End, pos.Arrow)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "End %d arrow %d: %s  (total %d)\n",
		pos.End+1, pos.Arrow+1, value, stats.TotalScore(s))
	return err
}

func runArrowUndoCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	pos, ok, err := a.repo.UndoLastArrow(cmd.Context(), s.ID)
	if err != nil {
		return err
	}
	if !ok {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo")
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared end %d arrow %d\n", pos.End+1, pos.Arrow+1)
	return err
}

func runArrowAddCmd(cmd *cobra.Command, args []string) error {
	values := make([]model.ArrowScore, 0, len(args)-1)
	for _, arg := range args[1:] {
		v, err := model.ParseArrowScore(arg)
		if err != nil {
			return err
		}
		if !v.IsSet() {
			return fmt.Errorf("invalid arrow score %q (use 1-10, X or M)", arg)
		}
		values = append(values, v)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	for _, v := range values {
		pos, err := a.repo.RecordArrow(cmd.Context(), s.ID, v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "End %d arrow %d: %s\n", pos.End+1, pos.Arrow+1, v); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Lock a fully scored session",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompleteCmd,
	}
	cmd.Flags().BoolVar(&completeOnly, "check", false, "only report whether the session can be completed")
	return cmd
}

func runCompleteCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, args[0])
	if err != nil {
		return err
	}
	if completeOnly {
		ok, err := a.repo.CanComplete(cmd.Context(), s.ID)
		if err != nil {
			return err
		}
		msg := "Session can be completed"
		if !ok {
			msg = "Session has unscored arrows"
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	}
	done, err := a.repo.CompleteSession(cmd.Context(), s.ID)
	if err != nil {
		return err
	}
	res := stats.Result(done)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Completed session %s: %d points, %d X\n", stats.ShortID(done.ID), res.TotalScore, res.XCount)
	return err
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := resolveSession(cmd.Context(), a, args[0])
	if errors.Is(err, scoring.ErrNotFound) {
		logErrf("No session %s; nothing deleted\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.repo.DeleteSession(cmd.Context(), s.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", stats.ShortID(s.ID))
	return err
}

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [id]",
		Short: "Score a session in the TUI (default: newest open session)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScoreCmd,
	}
}

func runScoreCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var s model.Session
	if len(args) == 1 {
		s, err = resolveSession(cmd.Context(), a, args[0])
	} else {
		s, err = newestOpenSession(cmd.Context(), a)
	}
	if err != nil {
		return err
	}
	return runScoringTUI(a, s)
}

func runScoringTUI(a *app, s model.Session) error {
	m := tui.NewModel(a.repo, s)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	final := m.Session()
	logErrf("Session %s: %d points\n", stats.ShortID(final.ID), stats.TotalScore(final))
	return nil
}

// resolveSession accepts a full id or a unique prefix of one of the
// owner's session ids, as printed by `quiver sessions`. Sessions of other
// owners are reported as not found.
func resolveSession(ctx context.Context, a *app, arg string) (model.Session, error) {
	s, err := a.repo.GetSession(ctx, arg)
	if err == nil {
		if s.OwnerID != a.owner {
			return model.Session{}, fmt.Errorf("get session %s: %w", arg, scoring.ErrNotFound)
		}
		return s, nil
	}
	if !errors.Is(err, scoring.ErrNotFound) {
		return model.Session{}, err
	}
	sessions, lerr := a.repo.ListSessionsForOwner(ctx, a.owner)
	if lerr != nil {
		return model.Session{}, lerr
	}
	var matches []model.Session
	for _, candidate := range sessions {
		if strings.HasPrefix(candidate.ID, arg) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return model.Session{}, err
	case 1:
		return matches[0], nil
	}
	return model.Session{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", arg, len(matches))
}

func newestOpenSession(ctx context.Context, a *app) (model.Session, error) {
	sessions, err := a.repo.ListSessionsForOwner(ctx, a.owner)
	if err != nil {
		return model.Session{}, err
	}
	for _, s := range sessions {
		if !s.Completed {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("no open session for %s (start one with: quiver new)", a.owner)
}

func parsePosition(endArg, arrowArg string) (model.Position, error) {
	end, err := strconv.Atoi(endArg)
	if err != nil || end < 1 {
		return model.Position{}, fmt.Errorf("invalid end %q (ends are numbered from 1)", endArg)
	}
	arrow, err := strconv.Atoi(arrowArg)
	if err != nil || arrow < 1 {
		return model.Position{}, fmt.Errorf("invalid arrow %q (arrows are numbered from 1)", arrowArg)
	}
	return model.Position{End: end - 1, Arrow: arrow - 1}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
