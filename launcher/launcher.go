// Package launcher runs one training invocation and archives its provenance.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/splatloc/train-launcher/internal/metrics"
	"github.com/splatloc/train-launcher/launchconfig"
	"github.com/splatloc/train-launcher/pkg/fileutil"
	"github.com/splatloc/train-launcher/pkg/procgroup"
	"go.uber.org/zap"
	utilexec "k8s.io/utils/exec"
	"sigs.k8s.io/yaml"
)

// ErrTrainingFailed is returned when the training process exits with an error.
var ErrTrainingFailed = errors.New("training failed")

// bookkeepingTimeout bounds archiving, uploads and metrics after the run
// context is already done.
const bookkeepingTimeout = 2 * time.Minute

// Uploader uploads files relative to a base directory.
type Uploader interface {
	UploadFiles(ctx context.Context, baseDir string, rels []string) ([]string, error)
}

// Launcher runs the training script described by a launch configuration.
type Launcher struct {
	lg       *zap.Logger
	cfg      *launchconfig.Config
	exec     utilexec.Interface
	stdout   io.Writer
	stderr   io.Writer
	uploader Uploader
	metrics  metrics.MetricRegistry
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithExec sets the process executor.
func WithExec(e utilexec.Interface) Option {
	return func(l *Launcher) { l.exec = e }
}

// WithOutput sets the writers for the training process output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdout, l.stderr = stdout, stderr
	}
}

// WithUploader enables artifact upload after a run.
func WithUploader(u Uploader) Option {
	return func(l *Launcher) { l.uploader = u }
}

// WithMetrics sets the metric registry.
func WithMetrics(r metrics.MetricRegistry) Option {
	return func(l *Launcher) { l.metrics = r }
}

// New returns a Launcher. cfg must have been validated.
func New(lg *zap.Logger, cfg *launchconfig.Config, opts ...Option) (*Launcher, error) {
	if lg == nil {
		return nil, errors.New("nil logger")
	}
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	l := &Launcher{
		lg:      lg,
		cfg:     cfg,
		exec:    procgroup.New(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		metrics: metrics.NewNoopMetricRegistry(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run launches the training process, waits for it, and archives the
// provenance copy and launch record into the output path.
//
// A failed training process skips archiving unless ProvenanceOnFailure is set.
// The output path is never created here; if the training process did not
// create it, archiving fails with fileutil.ErrDirNotExist.
func (l *Launcher) Run(ctx context.Context) (*Record, error) {
	argv, err := Command(l.cfg)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Command:     argv,
		CommandLine: shellquote.Join(argv...),
		SourcePath:  l.cfg.SourcePath,
		OutputPath:  l.cfg.OutputPath(),
		LaunchedBy:  launchedBy(),
		ExitCode:    -1,
	}

	if l.cfg.Preflight {
		if rec.Layout, err = l.preflight(); err != nil {
			return rec, fmt.Errorf("preflight failed (%w)", err)
		}
	}

	start := time.Now()
	runErr := l.runTraining(ctx, rec)
	rec.TimeFrame = NewTimeFrame(start, time.Now())
	rec.ExitCode = exitCode(runErr)
	rec.Succeeded = runErr == nil
	l.recordMetrics(rec)

	ctx, cancel := bookkeepingContext(ctx)
	defer cancel()

	if runErr != nil {
		l.lg.Warn("training failed",
			zap.String("command", rec.CommandLine),
			zap.Int("exit-code", rec.ExitCode),
			zap.String("took", rec.TimeFrame.TookString),
			zap.Error(runErr),
		)
		runErr = fmt.Errorf("%w (exit code %d): %w", ErrTrainingFailed, rec.ExitCode, runErr)
		if !l.cfg.ProvenanceOnFailure {
			return rec, errors.Join(runErr, l.emitMetrics(ctx))
		}
	} else {
		l.lg.Info("training finished",
			zap.String("output-path", rec.OutputPath),
			zap.String("took", rec.TimeFrame.TookString),
		)
	}

	archiveErr := l.archive(ctx, rec)
	return rec, errors.Join(runErr, archiveErr, l.emitMetrics(ctx))
}

// bookkeepingContext returns ctx, or a context detached from ctx's
// cancellation and bounded by bookkeepingTimeout when ctx is already done.
func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (l *Launcher) runTraining(ctx context.Context, rec *Record) error {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	cmd := l.exec.CommandContext(ctx, rec.Command[0], rec.Command[1:]...)
	if l.cfg.WorkDir != "" {
		cmd.SetDir(l.cfg.WorkDir)
	}
	cmd.SetStdout(l.stdout)
	cmd.SetStderr(l.stderr)

	l.lg.Info("launching training",
		zap.String("command", rec.CommandLine),
		zap.String("work-dir", l.cfg.WorkDir),
		zap.String("output-path", rec.OutputPath),
		zap.Duration("timeout", l.cfg.Timeout),
	)
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return err
}

// exitCode returns 0 for nil, the process status for exit errors, and -1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee utilexec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitStatus()
	}
	return -1
}

// archive copies the provenance file, writes the launch record, and uploads.
func (l *Launcher) archive(ctx context.Context, rec *Record) error {
	output := l.cfg.HostPath(rec.OutputPath)
	if !fileutil.IsDir(output) {
		l.lg.Warn("output path does not exist; skipping provenance copy", zap.String("output-path", output))
		return fmt.Errorf("provenance copy to %q failed (%w)", output, fileutil.ErrDirNotExist)
	}

	dst, err := l.copyProvenance(output)
	if err != nil {
		return fmt.Errorf("provenance copy to %q failed (%w)", output, err)
	}
	rec.ProvenanceCopy = dst
	l.lg.Info("copied provenance", zap.String("path", dst))

	var errs []error
	if rec.LatestIteration, err = LatestIteration(output); err != nil {
		errs = append(errs, err)
	}
	if rec.Artifacts, err = ScanArtifacts(output); err != nil {
		errs = append(errs, err)
	}

	d, err := yaml.Marshal(rec)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if _, err = fileutil.WriteInto(output, RecordFileName, d); err != nil {
		return errors.Join(append(errs, err)...)
	}
	l.lg.Info("wrote launch record",
		zap.String("path", filepath.Join(output, RecordFileName)),
		zap.Int("latest-iteration", rec.LatestIteration),
		zap.Strings("artifacts", rec.Artifacts),
	)

	if l.uploader != nil {
		rels := append([]string{filepath.Base(dst), RecordFileName}, rec.Artifacts...)
		keys, err := l.uploader.UploadFiles(ctx, output, rels)
		if err != nil {
			errs = append(errs, fmt.Errorf("upload failed (%w)", err))
		}
		l.lg.Info("uploaded artifacts", zap.Strings("keys", keys))
	}
	return errors.Join(errs...)
}

// copyProvenance copies the provenance file into output, or writes the
// resolved configuration when no provenance file is configured.
func (l *Launcher) copyProvenance(output string) (string, error) {
	src := l.cfg.ProvenancePath
	if src == "" {
		d, err := l.cfg.YAML()
		if err != nil {
			return "", err
		}
		return fileutil.WriteInto(output, ResolvedConfigFileName, d)
	}

	dst := filepath.Join(output, filepath.Base(src))
	if samePath(src, dst) {
		return dst, nil
	}
	return fileutil.CopyInto(src, output)
}

func samePath(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}

func (l *Launcher) emitMetrics(ctx context.Context) error {
	if err := l.metrics.Emit(ctx); err != nil {
		l.lg.Warn("failed to emit metrics", zap.Error(err))
		return fmt.Errorf("emit metrics failed (%w)", err)
	}
	return nil
}
