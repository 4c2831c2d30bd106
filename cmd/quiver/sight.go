package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/quiver/internal/model"
	"github.com/verte-zerg/quiver/internal/scoring"
	"github.com/verte-zerg/quiver/internal/stats"
)

var (
	sightBow      string
	sightDistance float64
	sightMark     string
	sightNotes    string
)

func newSightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sight",
		Short: "Manage sight marks per bow and distance",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sight marks for a bow, nearest first",
		Args:  cobra.NoArgs,
		RunE:  runSightListCmd,
	}
	list.Flags().StringVar(&sightBow, "bow", "", "bow identifier")

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a sight mark",
		Args:  cobra.NoArgs,
		RunE:  runSightAddCmd,
	}
	add.Flags().StringVar(&sightBow, "bow", "", "bow identifier")
	add.Flags().Float64Var(&sightDistance, "distance", 0, "distance in metres")
	add.Flags().StringVar(&sightMark, "mark", "", "sight setting")
	add.Flags().StringVar(&sightNotes, "notes", "", "free-form notes")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a sight mark",
		Args:  cobra.ExactArgs(1),
		RunE:  runSightUpdateCmd,
	}
	update.Flags().StringVar(&sightBow, "bow", "", "bow identifier")
	update.Flags().Float64Var(&sightDistance, "distance", 0, "distance in metres")
	update.Flags().StringVar(&sightMark, "mark", "", "sight setting")
	update.Flags().StringVar(&sightNotes, "notes", "", "free-form notes")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sight mark",
		Args:  cobra.ExactArgs(1),
		RunE:  runSightDeleteCmd,
	}

	cmd.AddCommand(list, add, update, del)
	return cmd
}

// resolveBow falls back to the configured bow when --bow is not given.
func resolveBow(cmd *cobra.Command, a *app) (string, error) {
	bow := sightBow
	if !cmd.Flags().Changed("bow") && a.file.Archer.Bow != nil {
		bow = *a.file.Archer.Bow
	}
	if bow == "" {
		return "", fmt.Errorf("--bow is required")
	}
	return bow, nil
}

func runSightListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	bow, err := resolveBow(cmd, a)
	if err != nil {
		return err
	}
	marks, err := a.repo.GetSightSettingsForBow(cmd.Context(), a.owner, bow)
	if err != nil {
		return err
	}
	return renderSightList(cmd.OutOrStdout(), marks)
}

func runSightAddCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	bow, err := resolveBow(cmd, a)
	if err != nil {
		return err
	}
	mark, err := a.repo.AddSightSetting(cmd.Context(), scoring.NewSightSetting{
		OwnerID:       a.owner,
		BowIdentifier: bow,
		Distance:      sightDistance,
		SightMark:     sightMark,
		Notes:         sightNotes,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added sight mark %s: %s at %s\n",
		stats.ShortID(mark.ID), mark.SightMark, stats.FormatDistance(mark.Distance))
	return err
}

func runSightUpdateCmd(cmd *cobra.Command, args []string) error {
	var upd scoring.SightUpdate
	if cmd.Flags().Changed("bow") {
		upd.BowIdentifier = &sightBow
	}
	if cmd.Flags().Changed("distance") {
		upd.Distance = &sightDistance
	}
	if cmd.Flags().Changed("mark") {
		upd.SightMark = &sightMark
	}
	if cmd.Flags().Changed("notes") {
		upd.Notes = &sightNotes
	}
	if upd == (scoring.SightUpdate{}) {
		return fmt.Errorf("nothing to update (use --bow, --distance, --mark or --notes)")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := ownedSightSetting(cmd.Context(), a, args[0]); err != nil {
		return err
	}
	mark, err := a.repo.UpdateSightSetting(cmd.Context(), args[0], upd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated sight mark %s: %s at %s\n",
		stats.ShortID(mark.ID), mark.SightMark, stats.FormatDistance(mark.Distance))
	return err
}

func runSightDeleteCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = ownedSightSetting(cmd.Context(), a, args[0])
	if errors.Is(err, scoring.ErrNotFound) {
		logErrf("No sight mark %s; nothing deleted\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.repo.DeleteSightSetting(cmd.Context(), args[0]); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted sight mark %s\n", args[0])
	return err
}

// ownedSightSetting reports marks of other owners as not found.
func ownedSightSetting(ctx context.Context, a *app, id string) (model.SightSetting, error) {
	mark, err := a.repo.GetSightSetting(ctx, id)
	if err != nil {
		return model.SightSetting{}, err
	}
	if mark.OwnerID != a.owner {
		return model.SightSetting{}, fmt.Errorf("get sight setting %s: %w", id, scoring.ErrNotFound)
	}
	return mark, nil
}

func renderSightList(w io.Writer, marks []model.SightSetting) error {
	if len(marks) == 0 {
		_, err := fmt.Fprintln(w, "No sight marks found.")
		return err
	}
	for _, m := range marks {
		line := fmt.Sprintf("%s  %6s  %s", m.ID, stats.FormatDistance(m.Distance), m.SightMark)
		if m.Notes != "" {
			line += "  # " + m.Notes
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
