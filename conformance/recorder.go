package conformance

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Result is one finished scenario. Immutable once recorded.
type Result struct {
	Name      string  `json:"name"`
	Success   bool    `json:"success"`
	Duration  float64 `json:"duration"`
	Error     string  `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

type Summary struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	TotalDuration float64 `json:"total_duration"`
}

// Recorder times scenarios and accumulates their results for the run.
type Recorder struct {
	start   time.Time
	results []Result
}

func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// Record runs fn, times it, and appends a Result whether fn succeeded or
// not. The scenario error is handed back so the driver can decide whether
// to keep going.
func (r *Recorder) Record(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	res := Result{
		Name:      name,
		Success:   err == nil,
		Duration:  time.Since(start).Seconds(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		res.Error = err.Error()
	}
	r.results = append(r.results, res)
	return err
}

func (r *Recorder) Results() []Result {
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Recorder) Summary() Summary {
	s := Summary{Total: len(r.results)}
	for _, res := range r.results {
		if res.Success {
			s.Passed++
		} else {
			s.Failed++
		}
		s.TotalDuration += res.Duration
	}
	return s
}

// PrintSummary writes the end-of-run block. Never gated by quiet mode.
func (r *Recorder) PrintSummary(w io.Writer) {
	s := r.Summary()
	fmt.Fprintf(w, "\n=== Test Summary ===\n")
	fmt.Fprintf(w, "Start time: %s\n", r.start.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Total duration: %.2f seconds\n", s.TotalDuration)
	fmt.Fprintf(w, "Total tests: %d\n", s.Total)
	fmt.Fprintf(w, "Passed: %d\n", s.Passed)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)

	if s.Failed > 0 {
		fmt.Fprintf(w, "\nFailed tests:\n")
		for _, res := range r.results {
			if !res.Success {
				fmt.Fprintf(w, "- %s: %s\n", res.Name, res.Error)
			}
		}
	}
}

type exportDocument struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Results   []Result `json:"results"`
	Summary   Summary  `json:"summary"`
}

// Export serializes the full run to a JSON document at path.
func (r *Recorder) Export(path string) error {
	doc := exportDocument{
		StartTime: r.start.Format(time.RFC3339),
		EndTime:   time.Now().Format(time.RFC3339),
		Results:   r.results,
		Summary:   r.Summary(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results %q: %w", path, err)
	}
	return nil
}
