package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// StateFile is the filename for run history
const StateFile = ".sqlseq-state.json"

const stateVersion = "1"

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// State records the last run of every document.
// Stored in .sqlseq-state.json next to the output directory (git-ignored)
type State struct {
	Version string         `json:"version"`
	Runs    map[string]Run `json:"runs"` // keyed by document origin

	path string
}

// Run is one execution of a document.
type Run struct {
	Document   string    `json:"document"`
	Origin     string    `json:"origin"`
	Artifact   string    `json:"artifact,omitempty"`
	Published  string    `json:"published,omitempty"`
	Steps      int       `json:"steps"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Path returns the state file location for an output directory.
func Path(outputDir string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(outputDir)), StateFile)
}

// Load reads the state file at path
// Returns empty state if file doesn't exist
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{Version: stateVersion, Runs: make(map[string]Run), path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("unsupported state file version %q in %s", state.Version, path)
	}
	if state.Runs == nil {
		state.Runs = make(map[string]Run)
	}
	state.path = path
	return &state, nil
}

// Save writes the state file atomically.
func (s *State) Save() error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically (write to temp file, then rename)
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// Record stores run as the latest run of its document and saves.
func (s *State) Record(run Run) error {
	if run.Origin == "" {
		return fmt.Errorf("run of %q has no origin", run.Document)
	}
	s.Runs[run.Origin] = run
	return s.Save()
}

// Last returns the latest run of the document at origin.
func (s *State) Last(origin string) (Run, bool) {
	run, ok := s.Runs[origin]
	return run, ok
}

// History returns every recorded run, most recent first.
func (s *State) History() []Run {
	runs := make([]Run, 0, len(s.Runs))
	for _, r := range s.Runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].FinishedAt.Equal(runs[j].FinishedAt) {
			return runs[i].Origin < runs[j].Origin
		}
		return runs[i].FinishedAt.After(runs[j].FinishedAt)
	})
	return runs
}
