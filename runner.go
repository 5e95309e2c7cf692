package scriptrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Summary describes what a run did, by script name and in execution order.
type Summary struct {
	RunID        string
	Discovered   []string
	Applied      []string
	Skipped      []string
	Failed       []string
	NotAttempted []string

	// DirectoryMissing is set when the scripts directory did not exist.
	DirectoryMissing bool
}

// Err returns one ErrScriptExecutionFailed per failed script, joined, or nil.
func (s *Summary) Err() error {
	if s == nil || len(s.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.Failed))
	for _, name := range s.Failed {
		errs = append(errs, fmt.Errorf("%w: %s", ErrScriptExecutionFailed, name))
	}
	return errors.Join(errs...)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for progress output.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// Runner applies every pending script in the scripts directory once.
//
// For each script, in name order, it asks the history store whether the
// script already succeeded; if not it runs the script through the executor
// and records the outcome before moving on.
type Runner struct {
	cfg      Config
	history  HistoryStore
	executor Executor
	logger   *zap.Logger
	runID    string
}

// New creates a Runner. cfg is normalized; history and executor are required.
func New(cfg Config, history HistoryStore, executor Executor, opts ...Option) *Runner {
	cfg.Normalize()
	r := &Runner{
		cfg:      cfg,
		history:  history,
		executor: executor,
		logger:   zap.NewNop(),
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("run_id", r.runID))
	return r
}

// RunID returns the id attached to every log entry of this runner.
func (r *Runner) RunID() string {
	return r.runID
}

// Scripts lists the scripts the runner would consider, in execution order.
func (r *Runner) Scripts() ([]Script, error) {
	return ListScripts(r.cfg.ScriptsDirectory, r.cfg.ScriptExtension)
}

// RunAll processes the scripts directory.
//
// A missing directory is logged and returns an empty summary and no error.
// Scripts that fail are recorded and do not stop the run unless
// HaltOnFailure is set. History errors, an unavailable client and
// context cancellation abort the run and are returned.
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}
	summary := &Summary{RunID: r.runID}
	start := time.Now()

	scripts, err := r.Scripts()
	if errors.Is(err, ErrDirectoryNotFound) {
		r.logger.Warn("📂 scripts directory not found, nothing to apply",
			zap.String("directory", r.cfg.ScriptsDirectory))
		summary.DirectoryMissing = true
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("list scripts in %s: %w", r.cfg.ScriptsDirectory, err)
	}
	for _, s := range scripts {
		summary.Discovered = append(summary.Discovered, s.Name)
	}
	r.logger.Info("🔍 discovered scripts",
		zap.String("directory", r.cfg.ScriptsDirectory),
		zap.Int("count", len(scripts)))

	for i, script := range scripts {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run aborted before %s: %w", script.Name, err)
		}
		failed, err := r.runScript(ctx, script, summary)
		if err != nil {
			return summary, err
		}
		if failed && r.cfg.HaltOnFailure {
			for _, rest := range scripts[i+1:] {
				summary.NotAttempted = append(summary.NotAttempted, rest.Name)
			}
			r.logger.Warn("🛑 halting after failed script",
				zap.String("script", script.Name),
				zap.Int("not_attempted", len(summary.NotAttempted)))
			break
		}
	}

	r.logger.Info("🏁 run complete",
		zap.Int("applied", len(summary.Applied)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("not_attempted", len(summary.NotAttempted)),
		zap.Duration("duration", time.Since(start)))
	return summary, nil
}

// runScript handles one script and reports whether it failed.
func (r *Runner) runScript(ctx context.Context, script Script, summary *Summary) (bool, error) {
	done, err := r.history.HasSucceeded(ctx, script.Name)
	if err != nil {
		return false, fmt.Errorf("check history for %s: %w", script.Name, err)
	}
	if done {
		r.logger.Info("⏭️ skipping already applied script", zap.String("script", script.Name))
		summary.Skipped = append(summary.Skipped, script.Name)
		return false, nil
	}

	r.logger.Info("▶️ running script", zap.String("script", script.Name))
	outcome, err := r.executor.Execute(ctx, script)
	if err != nil {
		return false, fmt.Errorf("execute %s: %w", script.Name, err)
	}

	detail := ""
	if !outcome.Succeeded {
		detail = failurePlaceholder
		if r.cfg.PersistDiagnostics {
			detail = outcome.Diagnostic()
		}
	}
	if err := r.history.RecordOutcome(ctx, script.Name, outcome.Succeeded, detail); err != nil {
		return false, fmt.Errorf("record outcome for %s: %w", script.Name, err)
	}

	if outcome.Succeeded {
		r.logger.Info("✅ script applied",
			zap.String("script", script.Name),
			zap.Duration("duration", outcome.Duration))
		summary.Applied = append(summary.Applied, script.Name)
		return false, nil
	}
	r.logger.Error("❌ script failed",
		zap.String("script", script.Name),
		zap.Int("exit_code", outcome.ExitCode),
		zap.String("error", outcome.Diagnostic()))
	summary.Failed = append(summary.Failed, script.Name)
	return true, nil
}
