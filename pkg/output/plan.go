package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/sdejongh/foldersync/pkg/models"
)

var actionMarks = map[models.ActionKind]string{
	models.ActionCopy:     color.GreenString("+"),
	models.ActionUpdate:   color.CyanString("~"),
	models.ActionDelete:   color.RedString("-"),
	models.ActionConflict: color.YellowString("!"),
	models.ActionSkip:     color.New(color.FgHiBlack).Sprint("="),
}

// WritePlan renders a plan action-by-action. only filters to specific
// action kinds; empty means all.
func WritePlan(w io.Writer, plan *models.SyncPlan, only []models.ActionKind) error {
	wanted := func(models.ActionKind) bool { return true }
	if len(only) > 0 {
		set := make(map[models.ActionKind]bool, len(only))
		for _, k := range only {
			set[k] = true
		}
		wanted = func(k models.ActionKind) bool { return set[k] }
	}

	for i := range plan.Actions {
		a := &plan.Actions[i]
		if !wanted(a.Kind) {
			continue
		}
		line := fmt.Sprintf("%s %s", actionMarks[a.Kind], a.Path)
		if b := a.Bytes(); b > 0 && a.Kind != models.ActionDelete {
			line += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(b)))
		}
		if a.Direction == models.DirectionReverse {
			line += color.MagentaString(" <-")
		}
		if a.Reason != "" {
			line += color.New(color.FgHiBlack).Sprintf("  # %s", a.Reason)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	s := plan.Summary
	_, err := fmt.Fprintf(w, "\n%d actions: %d copies, %d updates, %d deletes, %d conflicts, %d skips; %d unchanged; %s to transfer\n",
		s.TotalActions, s.Copies, s.Updates, s.Deletes, s.Conflicts, s.Skips,
		s.Unchanged, humanize.Bytes(uint64(s.BytesToTransfer)))
	return err
}

// WritePlanJSON renders the whole plan as one JSON document
func WritePlanJSON(w io.Writer, plan *models.SyncPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
