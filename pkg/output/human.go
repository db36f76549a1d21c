package output

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/sdejongh/foldersync/pkg/metrics"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/progress"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnTint = color.New(color.FgYellow).SprintFunc()
	boldTint = color.New(color.Bold).SprintFunc()
)

// HumanFormatter renders colored terminal output with a progress bar
// over the plan's actions
type HumanFormatter struct {
	writer       io.Writer
	showProgress bool
	bar          *pb.ProgressBar
}

// NewHumanFormatter creates a human-readable formatter. showProgress
// controls whether a live bar is drawn during execution.
func NewHumanFormatter(showProgress bool) *HumanFormatter {
	return &HumanFormatter{showProgress: showProgress}
}

// Start prints the plan summary and sets up the bar
func (f *HumanFormatter) Start(writer io.Writer, plan *models.SyncPlan) error {
	f.writer = writer
	if writer == nil {
		f.writer = io.Discard
	}

	s := plan.Summary
	fmt.Fprintf(f.writer, "%s %s -> %s (%s)\n",
		boldTint("Syncing"), plan.SourcePath, plan.DestPath, plan.Mode)
	fmt.Fprintf(f.writer, "Planned: %d copies, %d updates, %d deletes, %d conflicts, %d skips (%s to transfer)\n",
		s.Copies, s.Updates, s.Deletes, s.Conflicts, s.Skips,
		humanize.Bytes(uint64(s.BytesToTransfer)))

	if f.showProgress && s.TotalActions > 0 {
		f.bar = pb.New(s.TotalActions)
		f.bar.SetWriter(f.writer)
		f.bar.Start()
	}
	return nil
}

// Event advances the bar and surfaces failures as they happen
func (f *HumanFormatter) Event(ev progress.Event) error {
	switch ev.Kind {
	case progress.ActionCompleted:
		if f.bar != nil {
			f.bar.Increment()
		}
	case progress.ActionFailed:
		if f.bar != nil {
			f.bar.Increment()
		}
		fmt.Fprintf(f.writer, "%s %s: %s\n", failMark, ev.Path, ev.Error)
	case progress.RunFinished:
		if f.bar != nil {
			f.bar.Finish()
			f.bar = nil
		}
	}
	return nil
}

// Complete prints the final summary
func (f *HumanFormatter) Complete(report *models.SyncReport, stats metrics.Snapshot) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}

	w := f.writer
	fmt.Fprintln(w)
	if report.DryRun {
		fmt.Fprintf(w, "%s nothing was changed\n", warnTint("Dry run:"))
	}
	fmt.Fprintf(w, "Completed in %s\n\n", report.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "  Copied:     %d\n", report.Executed.Copies)
	fmt.Fprintf(w, "  Updated:    %d\n", report.Executed.Updates)
	fmt.Fprintf(w, "  Deleted:    %d\n", report.Executed.Deletes)
	fmt.Fprintf(w, "  Conflicts:  %d resolved, %d unresolved\n",
		report.Executed.Conflicts, len(report.Conflicts))
	fmt.Fprintf(w, "  Skipped:    %d\n", report.Executed.Skips)
	fmt.Fprintf(w, "  Unchanged:  %d\n", report.Planned.Unchanged)
	fmt.Fprintf(w, "  Transferred: %s", humanize.Bytes(uint64(report.BytesTransferred)))
	if stats.Throughput > 0 {
		fmt.Fprintf(w, " (%s/s)", humanize.Bytes(uint64(stats.Throughput)))
	}
	fmt.Fprintln(w)

	for _, c := range report.Conflicts {
		fmt.Fprintf(w, "  %s conflict at %s: %s\n", warnTint("!"), c.Path, c.Detail)
	}
	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s %s: %s\n", failMark, e.Path, e.Error)
		}
	}

	switch report.Status {
	case models.StatusSuccess:
		fmt.Fprintf(w, "\n%s %s\n", okMark, report.Status)
	default:
		fmt.Fprintf(w, "\n%s %s\n", failMark, report.Status)
	}
	return nil
}

// Error reports a run-level error
func (f *HumanFormatter) Error(err error) error {
	w := f.writer
	if w == nil {
		w = io.Discard
	}
	fmt.Fprintf(w, "%s %v\n", failMark, err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}
