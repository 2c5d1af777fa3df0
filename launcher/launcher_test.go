package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/splatloc/train-launcher/internal/metrics"
	"github.com/splatloc/train-launcher/launchconfig"
	"github.com/splatloc/train-launcher/pkg/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	utilexec "k8s.io/utils/exec"
	fakeexec "k8s.io/utils/exec/testing"
	"sigs.k8s.io/yaml"
)

const runScript = "#!/bin/bash\npython train.py -s /data/sceneA -m /data/sceneA/outputs/9 --iterations 10000 --eval\n"

func fakeTraining(action fakeexec.FakeAction) (*fakeexec.FakeExec, *fakeexec.FakeCmd) {
	fcmd := &fakeexec.FakeCmd{RunScript: []fakeexec.FakeAction{action}}
	fexec := &fakeexec.FakeExec{
		CommandScript: []fakeexec.FakeCommandAction{
			func(cmd string, args ...string) utilexec.Cmd { return fakeexec.InitFakeCmd(fcmd, cmd, args...) },
		},
	}
	return fexec, fcmd
}

// newScene creates a COLMAP-layout scene with an image directory.
func newScene(t *testing.T) string {
	src := filepath.Join(t.TempDir(), "sceneA")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sparse", "0"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, launchconfig.DefaultImageDir), 0755))
	return src
}

func newConfig(t *testing.T, src string, provenance string) *launchconfig.Config {
	cfg := launchconfig.NewDefault()
	cfg.SourcePath = src
	cfg.ProvenancePath = provenance
	require.NoError(t, cfg.ValidateAndSetDefaults())
	return cfg
}

func writeRunScript(t *testing.T) string {
	p := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(p, []byte(runScript), 0755))
	return p
}

type fakeRegistry struct {
	values     map[string]float64
	emitted    int
	emitCtxErr error
}

func (r *fakeRegistry) Record(spec *metrics.MetricSpec, value float64, dimensions map[string]string) {
	r.values[spec.Metric] = value
}

func (r *fakeRegistry) Emit(ctx context.Context) error {
	r.emitted++
	r.emitCtxErr = ctx.Err()
	return nil
}

type fakeUploader struct {
	baseDir string
	rels    []string
	ctxErr  error
}

func (u *fakeUploader) UploadFiles(ctx context.Context, baseDir string, rels []string) ([]string, error) {
	u.baseDir, u.rels = baseDir, rels
	u.ctxErr = ctx.Err()
	return rels, nil
}

func TestRun(t *testing.T) {
	src := newScene(t)
	script := writeRunScript(t)
	cfg := newConfig(t, src, script)
	output := cfg.OutputPath()

	fexec, fcmd := fakeTraining(func() ([]byte, []byte, error) {
		writeFile(t, filepath.Join(output, "cameras.json"), "[]")
		writeFile(t, filepath.Join(output, "input.ply"), "ply")
		writeFile(t, filepath.Join(output, "point_cloud", "iteration_7000", "point_cloud.ply"), "ply")
		writeFile(t, filepath.Join(output, "point_cloud", "iteration_10000", "point_cloud.ply"), "ply")
		return []byte("Training complete.\n"), nil, nil
	})
	var stdout, stderr bytes.Buffer
	reg := &fakeRegistry{values: map[string]float64{}}
	up := &fakeUploader{}

	l, err := New(zap.NewNop(), cfg,
		WithExec(fexec),
		WithOutput(&stdout, &stderr),
		WithMetrics(reg),
		WithUploader(up),
	)
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fcmd.RunCalls)
	assert.Equal(t, append([]string{"python", "train.py"}, BuildArgs(cfg)...), fcmd.Argv)
	assert.Equal(t, "Training complete.\n", stdout.String())

	assert.True(t, rec.Succeeded)
	assert.Equal(t, 0, rec.ExitCode)
	assert.Equal(t, LayoutColmap, rec.Layout)
	assert.Equal(t, 10000, rec.LatestIteration)
	assert.Equal(t, []string{
		"cameras.json",
		"input.ply",
		filepath.Join("point_cloud", "iteration_10000", "point_cloud.ply"),
	}, rec.Artifacts)

	// provenance copy is byte-identical
	assert.Equal(t, filepath.Join(output, "run.sh"), rec.ProvenanceCopy)
	d, err := os.ReadFile(rec.ProvenanceCopy)
	require.NoError(t, err)
	assert.Equal(t, runScript, string(d))

	d, err = os.ReadFile(filepath.Join(output, RecordFileName))
	require.NoError(t, err)
	var written Record
	require.NoError(t, yaml.Unmarshal(d, &written))
	assert.Equal(t, rec.CommandLine, written.CommandLine)
	assert.Equal(t, output, written.OutputPath)
	assert.True(t, written.Succeeded)

	assert.Equal(t, 1.0, reg.values["TrainingSucceeded"])
	assert.Contains(t, reg.values, "TrainingRuntimeSeconds")
	assert.Equal(t, 1, reg.emitted)

	assert.Equal(t, output, up.baseDir)
	assert.Equal(t, append([]string{"run.sh", RecordFileName}, rec.Artifacts...), up.rels)
}

func TestRunFailedTrainingSkipsProvenance(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, writeRunScript(t))
	output := cfg.OutputPath()

	fexec, _ := fakeTraining(func() ([]byte, []byte, error) {
		require.NoError(t, os.MkdirAll(output, 0755))
		return nil, []byte("CUDA out of memory\n"), fakeexec.FakeExitError{Status: 2}
	})
	var stderr bytes.Buffer
	reg := &fakeRegistry{values: map[string]float64{}}
	l, err := New(zap.NewNop(), cfg, WithExec(fexec), WithOutput(&bytes.Buffer{}, &stderr), WithMetrics(reg))
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrainingFailed), "%v", err)
	assert.Equal(t, 2, rec.ExitCode)
	assert.False(t, rec.Succeeded)
	assert.Equal(t, "CUDA out of memory\n", stderr.String())

	assert.False(t, fileutil.Exist(filepath.Join(output, "run.sh")))
	assert.False(t, fileutil.Exist(filepath.Join(output, RecordFileName)))
	assert.Equal(t, 0.0, reg.values["TrainingSucceeded"])
	assert.Equal(t, 1, reg.emitted)
}

func TestRunFailedTrainingWithProvenanceOnFailure(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, writeRunScript(t))
	cfg.ProvenanceOnFailure = true
	output := cfg.OutputPath()

	fexec, _ := fakeTraining(func() ([]byte, []byte, error) {
		require.NoError(t, os.MkdirAll(output, 0755))
		return nil, nil, fakeexec.FakeExitError{Status: 1}
	})
	l, err := New(zap.NewNop(), cfg, WithExec(fexec), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	assert.True(t, errors.Is(err, ErrTrainingFailed), "%v", err)
	assert.Equal(t, 1, rec.ExitCode)

	d, err := os.ReadFile(filepath.Join(output, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, runScript, string(d))

	d, err = os.ReadFile(filepath.Join(output, RecordFileName))
	require.NoError(t, err)
	var written Record
	require.NoError(t, yaml.Unmarshal(d, &written))
	assert.False(t, written.Succeeded)
	assert.Equal(t, 1, written.ExitCode)
}

func TestRunOutputPathMissing(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, writeRunScript(t))

	// training "succeeds" without creating the output path
	fexec, _ := fakeTraining(func() ([]byte, []byte, error) { return nil, nil, nil })
	l, err := New(zap.NewNop(), cfg, WithExec(fexec), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fileutil.ErrDirNotExist), "%v", err)
	assert.False(t, errors.Is(err, ErrTrainingFailed))
	assert.True(t, rec.Succeeded)
	assert.Empty(t, rec.ProvenanceCopy)
	assert.False(t, fileutil.Exist(cfg.OutputPath()))
}

func TestRunSceneA(t *testing.T) {
	if fileutil.Exist("/data/sceneA/outputs/9") {
		t.Skip("/data/sceneA/outputs/9 exists on this host")
	}
	cfg := sceneAConfig(t)

	fexec, fcmd := fakeTraining(func() ([]byte, []byte, error) { return nil, nil, nil })
	l, err := New(zap.NewNop(), cfg, WithExec(fexec), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	assert.Equal(t, []string{
		"python", "train.py",
		"-s", "/data/sceneA",
		"-m", "/data/sceneA/outputs/9",
		"-i", "img648x484_raw",
		"-f", "img648x484_feature",
		"--iterations", "10000",
		"--eval",
	}, fcmd.Argv)
	assert.Equal(t, "python train.py -s /data/sceneA -m /data/sceneA/outputs/9 -i img648x484_raw -f img648x484_feature --iterations 10000 --eval", rec.CommandLine)
	assert.True(t, errors.Is(err, fileutil.ErrDirNotExist), "%v", err)
}

func TestRunWritesResolvedConfig(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, "")
	cfg.WorkDir = t.TempDir()
	output := cfg.OutputPath()

	fexec, fcmd := fakeTraining(func() ([]byte, []byte, error) {
		require.NoError(t, os.MkdirAll(output, 0755))
		return nil, nil, nil
	})
	l, err := New(zap.NewNop(), cfg, WithExec(fexec), WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))
	require.NoError(t, err)

	rec, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.WorkDir}, fcmd.Dirs)
	assert.Equal(t, filepath.Join(output, ResolvedConfigFileName), rec.ProvenanceCopy)

	loaded, err := launchconfig.Load(rec.ProvenanceCopy)
	require.NoError(t, err)
	assert.Equal(t, src, loaded.SourcePath)
	assert.Equal(t, output, loaded.ResolvedOutputPath)
}

func TestRunPreflightFailure(t *testing.T) {
	src := t.TempDir()
	cfg := newConfig(t, src, "")

	fexec, _ := fakeTraining(func() ([]byte, []byte, error) { return nil, nil, nil })
	l, err := New(zap.NewNop(), cfg, WithExec(fexec))
	require.NoError(t, err)

	_, err = l.Run(context.Background())
	assert.True(t, errors.Is(err, ErrUnknownLayout), "%v", err)
	assert.Equal(t, 0, fexec.CommandCalls)
}

func TestRunPreflightMissingImages(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, "")
	cfg.ImageDir = "images_4"

	fexec, _ := fakeTraining(func() ([]byte, []byte, error) { return nil, nil, nil })
	l, err := New(zap.NewNop(), cfg, WithExec(fexec))
	require.NoError(t, err)

	_, err = l.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, fexec.CommandCalls)
}

func TestNew(t *testing.T) {
	_, err := New(nil, launchconfig.NewDefault())
	assert.Error(t, err)
	_, err = New(zap.NewNop(), nil)
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 3, exitCode(fakeexec.FakeExitError{Status: 3}))
	assert.Equal(t, -1, exitCode(errors.New("exec: \"python\": executable file not found in $PATH")))
}

// "sleep 30; :" keeps sh alive as the parent of sleep, the way a
// "conda run" prefix stays the parent of python.
const sleepingPython = "sh -c 'sleep 30; :' sh"

func TestRunTimeoutStopsTraining(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
	cfg := newConfig(t, newScene(t), "")
	cfg.Python = sleepingPython
	cfg.Timeout = 300 * time.Millisecond

	var stdout, stderr bytes.Buffer
	l, err := New(zap.NewNop(), cfg, WithOutput(&stdout, &stderr))
	require.NoError(t, err)

	start := time.Now()
	rec, err := l.Run(context.Background())
	took := time.Since(start)

	assert.Less(t, took, 10*time.Second, "took %v", took)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
	assert.True(t, errors.Is(err, ErrTrainingFailed), "%v", err)
	assert.False(t, rec.Succeeded)
}

func TestRunCancelStopsTraining(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
	cfg := newConfig(t, newScene(t), "")
	cfg.Python = sleepingPython

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	reg := &fakeRegistry{values: map[string]float64{}}
	l, err := New(zap.NewNop(), cfg, WithOutput(&bytes.Buffer{}, &bytes.Buffer{}), WithMetrics(reg))
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Run(ctx)
	took := time.Since(start)

	assert.Less(t, took, 10*time.Second, "took %v", took)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	assert.Equal(t, 1, reg.emitted)
	assert.NoError(t, reg.emitCtxErr)
}

func TestRunInterruptedStillArchives(t *testing.T) {
	src := newScene(t)
	cfg := newConfig(t, src, writeRunScript(t))
	cfg.ProvenanceOnFailure = true
	output := cfg.OutputPath()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fexec, _ := fakeTraining(func() ([]byte, []byte, error) {
		require.NoError(t, os.MkdirAll(output, 0755))
		cancel()
		return nil, nil, errors.New("signal: interrupt")
	})
	reg := &fakeRegistry{values: map[string]float64{}}
	up := &fakeUploader{}
	l, err := New(zap.NewNop(), cfg,
		WithExec(fexec),
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
		WithMetrics(reg),
		WithUploader(up),
	)
	require.NoError(t, err)

	rec, err := l.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	assert.True(t, errors.Is(err, ErrTrainingFailed), "%v", err)
	assert.Equal(t, filepath.Join(output, "run.sh"), rec.ProvenanceCopy)

	assert.Equal(t, 0.0, reg.values["TrainingSucceeded"])
	assert.Equal(t, 1, reg.emitted)
	assert.NoError(t, reg.emitCtxErr)
	assert.Equal(t, output, up.baseDir)
	assert.NoError(t, up.ctxErr)
}

func TestRunRelativeSourceUnderWorkDir(t *testing.T) {
	for _, preflight := range []bool{true, false} {
		t.Run(fmt.Sprintf("preflight=%v", preflight), func(t *testing.T) {
			workDir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(workDir, "sceneA", "sparse"), 0755))
			require.NoError(t, os.MkdirAll(filepath.Join(workDir, "sceneA", launchconfig.DefaultImageDir), 0755))

			cfg := launchconfig.NewDefault()
			cfg.SourcePath = "sceneA"
			cfg.WorkDir = workDir
			cfg.Preflight = preflight
			cfg.ProvenancePath = writeRunScript(t)
			require.NoError(t, cfg.ValidateAndSetDefaults())
			hostOutput := filepath.Join(workDir, "sceneA", "outputs", "9")

			fexec, fcmd := fakeTraining(func() ([]byte, []byte, error) {
				writeFile(t, filepath.Join(hostOutput, "cameras.json"), "[]")
				return nil, nil, nil
			})
			up := &fakeUploader{}
			l, err := New(zap.NewNop(), cfg,
				WithExec(fexec),
				WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
				WithUploader(up),
			)
			require.NoError(t, err)

			rec, err := l.Run(context.Background())
			require.NoError(t, err)

			// the training script sees the paths as given
			assert.Equal(t, []string{workDir}, fcmd.Dirs)
			assert.Equal(t, "sceneA", fcmd.Argv[3])
			assert.Equal(t, "sceneA/outputs/9", fcmd.Argv[5])
			assert.Equal(t, "sceneA/outputs/9", rec.OutputPath)

			assert.Equal(t, filepath.Join(hostOutput, "run.sh"), rec.ProvenanceCopy)
			assert.True(t, fileutil.Exist(filepath.Join(hostOutput, RecordFileName)))
			assert.Equal(t, []string{"cameras.json"}, rec.Artifacts)
			assert.Equal(t, hostOutput, up.baseDir)
			if preflight {
				assert.Equal(t, LayoutColmap, rec.Layout)
			}
		})
	}
}
