package picker

import "context"

// PickerState represents the current screen
type PickerState int

const (
	StateBrowse PickerState = iota
	StateRunning
	StateDone
	StateFailed
)

// Entry is one script in the input directory. Err is set when the script
// does not parse or compile; such entries are listed but cannot run.
type Entry struct {
	Path        string
	Name        string
	Identifiers []string
	Steps       int
	Aggregation bool
	Err         error
}

// Runner executes the script at path and returns the artifact path.
type Runner func(ctx context.Context, path string) (string, error)

type runFinishedMsg struct {
	artifact string
	elapsed  string
	err      error
}
