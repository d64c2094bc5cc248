package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/config"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/executor"
	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/sqlvalidation"
)

func TestIsScript(t *testing.T) {
	tests := map[string]bool{
		"daily.seq":  true,
		"daily.sql":  true,
		"daily.SQLX": true,
		"daily.txt":  false,
		"daily":      false,
	}
	for name, want := range tests {
		if got := isScript(name); got != want {
			t.Errorf("isScript(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestListScripts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.seq", "a.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.seq"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := listScripts(dir)
	if err != nil {
		t.Fatalf("listScripts failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.sql"), filepath.Join(dir, "b.seq")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listScripts mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveScript(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ConfigFilePath = filepath.Join(dir, "sqlseq.toml")
	scripts := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scripts, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(scripts, "weekly.seq")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	for _, arg := range []string{path, "weekly", "weekly.seq"} {
		got, err := resolveScript(cfg, arg)
		if err != nil {
			t.Errorf("resolveScript(%q) failed: %v", arg, err)
			continue
		}
		if got != path {
			t.Errorf("resolveScript(%q) = %q, want %q", arg, got, path)
		}
	}

	if _, err := resolveScript(cfg, "weekyl"); err == nil || !strings.Contains(err.Error(), `"weekly"`) {
		t.Errorf("expected suggestion, got %v", err)
	}
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&configError{err: errors.New("bad")}, "configuration error"},
		{&parser.ParseError{Origin: "x.seq", Line: 1, Reason: "bad"}, "parse error"},
		{&document.BuildError{Reason: "bad"}, "build error"},
		{&compiler.CompileError{Reason: "bad"}, "compile error"},
		{&preflightError{}, "sql pre-flight failed"},
		{&executor.ExecutorError{Stage: executor.StageDirect, Reason: "x", Err: &database.LookupError{Connection: "c"}}, "connection error"},
		{&executor.ExecutorError{Stage: executor.StageInit, Reason: "cancelled", Err: context.Canceled}, "cancelled"},
		{&executor.ExecutorError{Stage: executor.StageMerge, Reason: "x", Err: errors.New("disk full")}, "execution error (merge)"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := errorCategory(tt.err); got != tt.want {
			t.Errorf("errorCategory(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPrintFailure(t *testing.T) {
	var buf bytes.Buffer
	err := &executor.ExecutorError{Stage: executor.StageStage, Reason: "step failed", Err: fmt.Errorf("query: %w", errors.New("no such table: t"))}
	printFailure(&buf, err)

	out := buf.String()
	for _, want := range []string{"execution error (stage)", "step failed", "caused by: no such table: t"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printFailure(&buf, &preflightError{result: sqlvalidation.SQLValidationResult{Issues: []sqlvalidation.ValidationIssue{
		{Result: "r1", Line: 1, Column: 8, Severity: sqlvalidation.SeverityError, Message: "syntax error"},
	}}})
	if !strings.Contains(buf.String(), "r1:1:8") {
		t.Errorf("pre-flight issues not printed:\n%s", buf.String())
	}
}

func TestTeeHandler(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(teeHandler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}).With("document", "daily")

	logger.Debug("hidden from info")
	logger.Info("shown everywhere")

	if strings.Contains(info.String(), "hidden from info") {
		t.Error("info handler received a debug record")
	}
	if !strings.Contains(info.String(), "shown everywhere") || !strings.Contains(info.String(), "document=daily") {
		t.Errorf("info handler output: %s", info.String())
	}
	if strings.Count(debug.String(), `"document":"daily"`) != 2 {
		t.Errorf("debug handler output: %s", debug.String())
	}
}
