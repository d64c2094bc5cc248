package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/config"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/executor"
	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/strutil"
)

// printConfigNotFound prints a helpful message when no connections are configured
func printConfigNotFound(w io.Writer) {
	fmt.Fprintln(w, `No connections configured. Create sqlseq.toml that looks like:

[connections.warehouse]
url = "postgres://localhost:5432"
user = "report"
password = "${WAREHOUSE_PASSWORD}"
databases = ["sales"]`)
}

// configError marks failures to load or resolve the configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return config.DescribeError(e.err) }
func (e *configError) Unwrap() error { return e.err }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	return cfg, nil
}

// setupLogging installs the process logger: text on stderr, plus JSON into
// the configured log file. The returned func closes the log file.
func setupLogging(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}

	handlers := []slog.Handler{slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})}
	closeFn := func() {}

	if path := cfg.LogFile(); cfg.Application.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeFn = func() { _ = f.Close() }
	}

	logger := slog.New(teeHandler(handlers))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// isScript reports whether a file name looks like a sequence script.
func isScript(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".seq" || strings.HasPrefix(ext, ".sql")
}

// listScripts returns the scripts directly inside dir, sorted by name.
func listScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read script directory: %w", err)
	}

	var scripts []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&os.ModeSymlink != 0 || !isScript(entry.Name()) {
			continue
		}
		scripts = append(scripts, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(scripts)
	return scripts, nil
}

// expandScriptArgs turns file and directory arguments into script paths.
// Without arguments the configured input directory is used.
func expandScriptArgs(cfg *config.Config, args []string) ([]string, error) {
	if len(args) == 0 {
		return listScripts(cfg.InputDir())
	}

	var out []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			scripts, err := listScripts(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, scripts...)
			continue
		}
		path, err := resolveScript(cfg, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// resolveScript finds a script given as a path, or by name relative to the
// input directory with or without its extension.
func resolveScript(cfg *config.Config, arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}

	dir := cfg.InputDir()
	for _, candidate := range []string{arg, arg + ".seq", arg + ".sql"} {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	msg := fmt.Sprintf("script %q not found", arg)
	if scripts, err := listScripts(dir); err == nil {
		names := make([]string, 0, len(scripts))
		for _, s := range scripts {
			base := filepath.Base(s)
			names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
		}
		if match := strutil.Suggest(strings.TrimSuffix(arg, filepath.Ext(arg)), names); match != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", match)
		}
	}
	return "", errors.New(msg)
}

// absPath keys run history by absolute script path.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// loadScript parses and compiles a script.
func loadScript(path string) (*document.Document, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := compiler.Compile(doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// errorCategory names the kind of failure for the user.
func errorCategory(err error) string {
	var (
		cfgErr     *configError
		parseErr   *parser.ParseError
		buildErr   *document.BuildError
		compileErr *compiler.CompileError
		lookupErr  *database.LookupError
		execErr    *executor.ExecutorError
		sqlErr     *preflightError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration error"
	case errors.As(err, &parseErr):
		return "parse error"
	case errors.As(err, &buildErr):
		return "build error"
	case errors.As(err, &compileErr):
		return "compile error"
	case errors.As(err, &sqlErr):
		return "sql pre-flight failed"
	case errors.As(err, &lookupErr):
		return "connection error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &execErr):
		return fmt.Sprintf("execution error (%s)", execErr.Stage)
	default:
		return "error"
	}
}

// rootCause follows single-error wrapping to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// printFailure prints the error category, the message and its root cause.
func printFailure(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprintf(w, "✗ %s: ", errorCategory(err))
	fmt.Fprintln(w, err.Error())

	var sqlErr *preflightError
	if errors.As(err, &sqlErr) {
		for _, issue := range sqlErr.result.Issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	}

	if cause := rootCause(err); cause != err && cause.Error() != err.Error() {
		_, _ = color.New(color.Faint).Fprintf(w, "  caused by: %s\n", cause)
	}
}
