// Package executor runs a compiled queue against the configured databases and
// writes the results into a workbook artifact.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/queue"
	"github.com/sqlseq/sqlseq/internal/sink"
	"github.com/sqlseq/sqlseq/internal/sink/staging"
	"github.com/sqlseq/sqlseq/internal/sink/workbook"
)

// ArtifactExtension is the file extension of every artifact.
const ArtifactExtension = ".xlsx"

// Stage names a phase of an execution.
type Stage string

const (
	StageInit      Stage = "init"
	StageDirect    Stage = "direct"
	StageStage     Stage = "stage"
	StageAggregate Stage = "aggregate"
	StageMerge     Stage = "merge"
	StageDone      Stage = "done"
)

// ExecutorError reports a failed execution and the stage it failed in.
type ExecutorError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *ExecutorError) Error() string {
	msg := fmt.Sprintf("execute (%s): %s", e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// Options controls where artifacts go and how a run cleans up.
type Options struct {
	OutputDir  string
	StagingDir string

	// Suffix is appended to the artifact name. Nil means no suffix.
	Suffix func(time.Time) string

	SlugFileNames bool
	IncludeStaged bool
	KeepStaging   bool
	RemovePartial bool

	Logger *slog.Logger
	Now    func() time.Time
}

// errorDescriber is implemented by providers that can explain engine errors.
type errorDescriber interface {
	DescribeError(connection string, err error) string
}

// Executor runs queues. It holds no per-run state and may be reused.
type Executor struct {
	provider database.Provider
	opts     Options
	logger   *slog.Logger
}

// New returns an executor drawing connections from provider.
func New(provider database.Provider, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{provider: provider, opts: opts, logger: logger}
}

// ArtifactPath returns the workbook path for a document named name run at t.
func (e *Executor) ArtifactPath(name string, t time.Time) string {
	base := strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	if e.opts.SlugFileNames {
		base = slug.Make(name)
	}
	if e.opts.Suffix != nil {
		base += e.opts.Suffix(t)
	}
	return filepath.Join(e.opts.OutputDir, base+ArtifactExtension)
}

// Execute drains q and returns the artifact path. Cancellation is honoured
// between steps; a running query is allowed to finish. On failure the path
// is returned only when a partial artifact was left on disk.
func (e *Executor) Execute(ctx context.Context, q *queue.Queue) (string, error) {
	if !q.HasNext() {
		return "", &ExecutorError{Stage: StageInit, Reason: "nothing to execute"}
	}

	path := e.ArtifactPath(q.Name(), e.opts.Now())
	logger := e.logger.With("document", q.Name())
	logger.Info("execution started", "stage", StageInit, "steps", q.Len(), "aggregation", q.HasAggregation(), "artifact", path)

	book, err := workbook.Create(path, logger)
	if err != nil {
		return "", &ExecutorError{Stage: StageInit, Reason: "failed to create workbook", Err: err}
	}

	start := time.Now()
	var runErr error
	if q.HasAggregation() {
		runErr = e.staged(ctx, q, book, logger)
	} else {
		runErr = e.direct(ctx, q, book, logger)
	}

	closeErr := book.Close()
	if runErr == nil && closeErr != nil {
		runErr = &ExecutorError{Stage: StageDone, Reason: "failed to close workbook", Err: closeErr}
	}

	if runErr != nil {
		logger.Error("execution failed", "error", runErr, "elapsed", time.Since(start))
		if e.opts.RemovePartial {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to remove partial artifact", "path", path, "error", err)
			}
			return "", runErr
		}
		if _, err := os.Stat(path); err == nil {
			return path, runErr
		}
		return "", runErr
	}

	logger.Info("execution finished", "stage", StageDone, "artifact", path, "sheets", len(book.Sheets()), "elapsed", time.Since(start))
	return path, nil
}

func (e *Executor) direct(ctx context.Context, q *queue.Queue, book *workbook.Session, logger *slog.Logger) error {
	logger.Info("stage entered", "stage", StageDirect)
	return e.steps(ctx, StageDirect, q, book, logger)
}

func (e *Executor) staged(ctx context.Context, q *queue.Queue, book *workbook.Session, logger *slog.Logger) error {
	stagingPath := filepath.Join(e.opts.StagingDir, stagingFileName(q.Name()))
	logger.Info("stage entered", "stage", StageStage, "staging", stagingPath)

	store, err := staging.Open(ctx, e.provider, stagingPath, logger)
	if err != nil {
		return &ExecutorError{Stage: StageStage, Reason: "failed to open staging store", Err: err}
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("failed to close staging store", "path", stagingPath, "error", cerr)
		}
		if e.opts.KeepStaging {
			logger.Info("staging store kept", "path", stagingPath)
			return
		}
		if rerr := os.Remove(stagingPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			logger.Warn("failed to remove staging store", "path", stagingPath, "error", rerr)
		}
	}()

	if err := e.steps(ctx, StageStage, q, store, logger); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return &ExecutorError{Stage: StageAggregate, Reason: "cancelled before aggregation", Err: err}
	}
	query, result := q.Aggregation()
	logger.Info("stage entered", "stage", StageAggregate, "result", result)
	if err := e.copy(ctx, book, result, func(ctx context.Context) (sink.Rows, func() error, error) {
		rows, err := store.Query(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		return rows, rows.Close, nil
	}); err != nil {
		return &ExecutorError{Stage: StageAggregate, Reason: fmt.Sprintf("aggregation %q", result), Err: err}
	}

	if !e.opts.IncludeStaged {
		return nil
	}

	logger.Info("stage entered", "stage", StageMerge)
	tables, err := store.Tables(ctx)
	if err != nil {
		return &ExecutorError{Stage: StageMerge, Reason: "failed to list staged results", Err: err}
	}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return &ExecutorError{Stage: StageMerge, Reason: fmt.Sprintf("cancelled before copying %q", table), Err: err}
		}
		if err := e.copy(ctx, book, table, func(ctx context.Context) (sink.Rows, func() error, error) {
			rows, err := store.QueryTable(ctx, table)
			if err != nil {
				return nil, nil, err
			}
			return rows, rows.Close, nil
		}); err != nil {
			return &ExecutorError{Stage: StageMerge, Reason: fmt.Sprintf("staged result %q", table), Err: err}
		}
		logger.Debug("staged result copied", "result", table)
	}
	return nil
}

// steps drains q into w, one step at a time.
func (e *Executor) steps(ctx context.Context, stage Stage, q *queue.Queue, w sink.Writer, logger *slog.Logger) error {
	for n := 1; q.HasNext(); n++ {
		if err := ctx.Err(); err != nil {
			return &ExecutorError{Stage: stage, Reason: fmt.Sprintf("cancelled before step %d", n), Err: err}
		}
		item, _ := q.Next()

		started := time.Now()
		if err := e.step(ctx, item, w); err != nil {
			reason := fmt.Sprintf("step %d %q on %s/%s", n, item.Result, item.Connection, item.Database)
			if d, ok := e.provider.(errorDescriber); ok {
				if detail := d.DescribeError(item.Connection, err); detail != "" {
					reason += " (" + detail + ")"
				}
			}
			return &ExecutorError{Stage: stage, Reason: reason, Err: err}
		}
		logger.Info("step finished",
			"stage", stage,
			"step", n,
			"result", item.Result,
			"connection", item.Connection,
			"database", item.Database,
			"elapsed", time.Since(started),
		)
	}
	return nil
}

func (e *Executor) step(ctx context.Context, item queue.Item, w sink.Writer) error {
	conn, err := e.provider.Resolve(ctx, item.Connection, item.Database)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	// The query runs to completion once started.
	runCtx := context.WithoutCancel(ctx)
	rows, err := conn.QueryContext(runCtx, item.SQL)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return w.Write(runCtx, item.Result, rows)
}

func (e *Executor) copy(ctx context.Context, book *workbook.Session, sheet string, open func(context.Context) (sink.Rows, func() error, error)) error {
	runCtx := context.WithoutCancel(ctx)
	rows, closeRows, err := open(runCtx)
	if err != nil {
		return err
	}
	defer func() { _ = closeRows() }()
	return book.Write(runCtx, sheet, rows)
}

func stagingFileName(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "staging"
	}
	return base + "_" + uuid.NewString() + ".db"
}
