// Package conformance drives the black-box checks against an
// Ollama-compatible chat endpoint: request shape, streaming behavior,
// retrieval-mode routing, and error handling for malformed inputs.
package conformance

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ArnoChenFx/ollamacheck"
	"github.com/ArnoChenFx/ollamacheck/internal/diag"
)

// Runner holds the shared state every scenario needs. It is single
// threaded: scenarios run one after another on the calling goroutine.
type Runner struct {
	Client      *ollamacheck.Client
	Query       string
	StreamQuery string
	Verbose     bool
	Out         io.Writer
	Recorder    *Recorder
}

func NewRunner(client *ollamacheck.Client, recorder *Recorder) *Runner {
	cfg := client.Config()
	streamQuery := cfg.Cases.Basic.StreamQuery
	if streamQuery == "" {
		streamQuery = cfg.Cases.Basic.Query
	}
	return &Runner{
		Client:      client,
		Query:       cfg.Cases.Basic.Query,
		StreamQuery: streamQuery,
		Verbose:     true,
		Out:         os.Stdout,
		Recorder:    recorder,
	}
}

// Scenario is one independent end-to-end check.
type Scenario struct {
	Name  string
	Title string
	Group string
	Run   func(r *Runner, ctx context.Context) error
}

const (
	groupBasic  = "Basic Functionality Tests"
	groupModes  = "Query Mode Tests"
	groupErrors = "Error Handling Tests"
)

// Scenarios returns every scenario in its fixed human-readable grouping:
// basic checks first, then the mode sweep, then the error cases.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "non_stream", Title: "Non-streaming Call Test", Group: groupBasic, Run: (*Runner).nonStreamChat},
		{Name: "stream", Title: "Streaming Call Test", Group: groupBasic, Run: (*Runner).streamChat},
		{Name: "tags", Title: "Model Listing Test", Group: groupBasic, Run: (*Runner).modelListing},
		{Name: "modes", Title: "Query Mode Test", Group: groupModes, Run: (*Runner).queryModes},
		{Name: "errors", Title: "Error Handling Test", Group: groupErrors, Run: (*Runner).errorHandling},
		{Name: "stream_errors", Title: "Streaming Error Handling Test", Group: groupErrors, Run: (*Runner).streamErrorHandling},
	}
}

// Names lists the selectable scenario names in run order.
func Names() []string {
	all := Scenarios()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	return names
}

func byName(name string) (Scenario, error) {
	for _, s := range Scenarios() {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown test %q (available: %s)", name, strings.Join(Names(), ", "))
}

// RunAll executes every scenario in the fixed grouping. A failing
// scenario never aborts the sweep: each failure is recorded and the next
// scenario still runs, so the summary reflects every scenario attempted.
func (r *Runner) RunAll(ctx context.Context) {
	lastGroup := ""
	for _, s := range Scenarios() {
		if s.Group != lastGroup {
			diag.Printf(r.Out, r.Verbose, "\n【%s】\n", s.Group)
			lastGroup = s.Group
		}
		// Failures are recorded; the sweep continues.
		_ = r.Recorder.Record(s.Title, func() error { return s.Run(r, ctx) })
	}
}

// RunNamed executes the explicitly selected scenarios in the given order
// and stops at the first failure, which is returned after being recorded.
func (r *Runner) RunNamed(ctx context.Context, names []string) error {
	selected := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, err := byName(name)
		if err != nil {
			return err
		}
		selected = append(selected, s)
	}

	for _, s := range selected {
		diag.Printf(r.Out, r.Verbose, "\n【Running Test: %s】\n", s.Name)
		if err := r.Recorder.Record(s.Name, func() error { return s.Run(r, ctx) }); err != nil {
			return err
		}
	}
	return nil
}
