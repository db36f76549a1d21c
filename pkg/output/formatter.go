package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/foldersync/pkg/metrics"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/progress"
)

// Formatter defines the interface for run output.
// Implementations include human-readable and JSON formatters.
type Formatter interface {
	// Start announces the plan before execution begins
	Start(writer io.Writer, plan *models.SyncPlan) error

	// Event renders one progress event
	Event(ev progress.Event) error

	// Complete finalizes output with the report and run counters
	Complete(report *models.SyncReport, stats metrics.Snapshot) error

	// Error reports a run-level error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter registered under the given name
func New(name string, showProgress bool) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(showProgress), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %q", name)
	}
}

// Consume drains an event stream into the formatter until the stream
// closes. Run it in its own goroutine alongside the engine.
func Consume(f Formatter, events <-chan progress.Event) {
	for ev := range events {
		f.Event(ev)
	}
}
