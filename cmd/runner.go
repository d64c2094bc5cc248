package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlseq/sqlseq/internal/compiler"
	"github.com/sqlseq/sqlseq/internal/config"
	"github.com/sqlseq/sqlseq/internal/database/connection"
	"github.com/sqlseq/sqlseq/internal/executor"
	"github.com/sqlseq/sqlseq/internal/parser"
	"github.com/sqlseq/sqlseq/internal/publish"
	"github.com/sqlseq/sqlseq/internal/sqlvalidation"
	"github.com/sqlseq/sqlseq/internal/state"
)

// runOptions are command-line overrides of the [executor] settings.
type runOptions struct {
	includeStaged bool
	keepStaging   bool
	suffix        string
	output        string
	validate      bool
	noPublish     bool
}

// preflightError reports a queue rejected by the SQL pre-flight.
type preflightError struct {
	result sqlvalidation.SQLValidationResult
}

func (e *preflightError) Error() string {
	return fmt.Sprintf("%d statement error(s)", len(e.result.Errors()))
}

// runner executes scripts with one connection manager and records history.
type runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	manager   *connection.Manager
	executor  *executor.Executor
	publisher *publish.Publisher
	history   *state.State
	validate  bool
}

func newRunner(cfg *config.Config, logger *slog.Logger, opts runOptions) (*runner, error) {
	conns, err := cfg.ResolveConnections(profile)
	if err != nil {
		return nil, &configError{err: err}
	}
	manager, err := connection.NewManager(conns, connection.PoolSettings{
		Size:              cfg.Pool.Size,
		ConnectionTimeout: cfg.Pool.ConnectionTimeout.Duration,
		IdleTimeout:       cfg.Pool.IdleTimeout.Duration,
	}, logger)
	if err != nil {
		return nil, &configError{err: err}
	}

	mode := cfg.Executor.UniqueSuffix
	if opts.suffix != "" {
		mode = opts.suffix
	}
	suffix, ok := config.Suffix(mode)
	if !ok {
		logger.Warn("unknown unique suffix, using timestamp", "suffix", mode)
	}

	outputDir := cfg.OutputDir()
	if opts.output != "" {
		outputDir = opts.output
	}

	r := &runner{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		executor: executor.New(manager, executor.Options{
			OutputDir:     outputDir,
			StagingDir:    cfg.StagingDir(),
			Suffix:        suffix,
			SlugFileNames: cfg.Executor.SlugFileNames,
			IncludeStaged: cfg.Executor.IncludeSequenceResults || opts.includeStaged,
			KeepStaging:   cfg.Executor.KeepStaging || opts.keepStaging,
			RemovePartial: cfg.Executor.RemovePartialArtifact,
			Logger:        logger,
		}),
		validate: cfg.Executor.ValidateSQL || opts.validate,
	}

	if cfg.Publish.Enabled() && !opts.noPublish {
		pub, err := cfg.ResolvePublish(profile)
		if err != nil {
			_ = manager.Close()
			return nil, &configError{err: err}
		}
		r.publisher, err = publish.New(pub, logger)
		if err != nil {
			_ = manager.Close()
			return nil, &configError{err: err}
		}
	}

	r.history, err = state.Load(state.Path(outputDir))
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
	}
	return r, nil
}

// Run parses, compiles and executes the script at path.
func (r *runner) Run(ctx context.Context, path string) (string, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return "", err
	}
	q, err := compiler.Compile(doc)
	if err != nil {
		return "", err
	}

	if r.validate {
		result := sqlvalidation.ValidateQueue(q, r.manager.DatabaseType)
		for _, issue := range result.Issues {
			if issue.Severity == sqlvalidation.SeverityWarning {
				r.logger.Warn("sql pre-flight", "issue", issue.String())
			}
		}
		if !result.Valid {
			return "", &preflightError{result: result}
		}
	}

	run := state.Run{
		Document:  doc.Name(),
		Origin:    absPath(doc.Origin()),
		Steps:     q.Len(),
		StartedAt: time.Now(),
	}
	artifact, execErr := r.executor.Execute(ctx, q)
	run.FinishedAt = time.Now()
	run.Artifact = artifact

	switch {
	case execErr == nil:
		run.Status = state.StatusSucceeded
	case errors.Is(execErr, context.Canceled):
		run.Status = state.StatusCancelled
		run.Error = execErr.Error()
	default:
		run.Status = state.StatusFailed
		run.Error = execErr.Error()
	}

	if execErr == nil && r.publisher != nil {
		obj, err := r.publisher.Publish(ctx, artifact)
		if err != nil {
			r.logger.Warn("artifact not published", "artifact", artifact, "error", err)
		} else {
			run.Published = obj.String()
		}
	}

	if r.history != nil {
		if err := r.history.Record(run); err != nil {
			r.logger.Warn("failed to record run", "error", err)
		}
	}
	return artifact, execErr
}

func (r *runner) Close() error {
	return r.manager.Close()
}
