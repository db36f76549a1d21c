package output

import (
	"encoding/json"
	"io"

	"github.com/sdejongh/foldersync/pkg/metrics"
	"github.com/sdejongh/foldersync/pkg/models"
	"github.com/sdejongh/foldersync/pkg/progress"
)

// JSONFormatter emits machine-readable output: one JSON object per
// line for events, then a final document with the report and counters.
type JSONFormatter struct {
	writer io.Writer
	enc    *json.Encoder
}

// NewJSONFormatter creates a JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonLine struct {
	Type  string          `json:"type"`
	Plan  *models.Summary `json:"plan,omitempty"`
	Event *progress.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

type jsonFinal struct {
	Type    string             `json:"type"`
	Report  *models.SyncReport `json:"report"`
	Metrics metrics.Snapshot   `json:"metrics"`
}

// Start emits the plan summary line
func (f *JSONFormatter) Start(writer io.Writer, plan *models.SyncPlan) error {
	f.writer = writer
	if writer == nil {
		f.writer = io.Discard
	}
	f.enc = json.NewEncoder(f.writer)
	return f.enc.Encode(jsonLine{Type: "plan", Plan: &plan.Summary})
}

// Event emits one event line
func (f *JSONFormatter) Event(ev progress.Event) error {
	if f.enc == nil {
		return nil
	}
	return f.enc.Encode(jsonLine{Type: "event", Event: &ev})
}

// Complete emits the final report document
func (f *JSONFormatter) Complete(report *models.SyncReport, stats metrics.Snapshot) error {
	if f.enc == nil {
		f.enc = json.NewEncoder(io.Discard)
	}
	return f.enc.Encode(jsonFinal{Type: "report", Report: report, Metrics: stats})
}

// Error emits an error line
func (f *JSONFormatter) Error(err error) error {
	if f.enc == nil {
		return nil
	}
	return f.enc.Encode(jsonLine{Type: "error", Error: err.Error()})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
