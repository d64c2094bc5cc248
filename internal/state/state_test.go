package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissing(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), StateFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Version != "1" || len(st.Runs) != 0 {
		t.Errorf("unexpected empty state: %+v", st)
	}
}

func TestRecordAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", StateFile)
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first := Run{Document: "a", Origin: "/s/a.seq", Steps: 2, StartedAt: base, FinishedAt: base.Add(time.Second), Status: StatusSucceeded, Artifact: "/r/a.xlsx"}
	second := Run{Document: "b", Origin: "/s/b.seq", Steps: 1, StartedAt: base, FinishedAt: base.Add(time.Minute), Status: StatusFailed, Error: "boom"}
	rerun := first
	rerun.FinishedAt = base.Add(time.Hour)
	rerun.Status = StatusCancelled

	for _, r := range []Run{first, second, rerun} {
		if err := st.Record(r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if diff := cmp.Diff([]Run{rerun, second}, reloaded.History()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if last, ok := reloaded.Last("/s/a.seq"); !ok || last.Status != StatusCancelled {
		t.Errorf("Last = %+v, %v", last, ok)
	}
	if d := rerun.Duration(); d != time.Hour {
		t.Errorf("Duration = %v", d)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestRecordRequiresOrigin(t *testing.T) {
	st, _ := Load(filepath.Join(t.TempDir(), StateFile))
	if err := st.Record(Run{Document: "x"}); err == nil {
		t.Fatal("expected error for a run without origin")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"bad json":    "{",
		"bad version": `{"version": "9", "runs": {}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), StateFile)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPath(t *testing.T) {
	if got, want := Path(filepath.Join("proj", "results")), filepath.Join("proj", StateFile); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}
