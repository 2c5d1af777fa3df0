// Package launchconfig defines the training launch configuration.
package launchconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"
)

// Config defines one training launch.
// Flag names match the json keys; see "cmd/train-launcher/run".
type Config struct {
	// ConfigPath is the configuration file path.
	// Set by "Load" or the "--config" flag, never from a flag of its own.
	ConfigPath string `json:"config-path,omitempty" flag:"-"`

	// LogLevel configures log level. Only supports debug, info, warn, error, panic, or fatal. Default 'info'.
	LogLevel string `json:"log-level" flag:"log-level" desc:"Log level (debug, info, warn, error, dpanic, panic, fatal)"`
	// LogOutputs is a list of log outputs. Valid values are 'default', 'stderr', 'stdout', or file names.
	// Logs are appended to the existing file, if any.
	// When a file with the ".log" extension is listed, training process output is appended there too.
	LogOutputs []string `json:"log-outputs,omitempty" flag:"-"`

	// Python is the command that runs the training script, shell-quoted.
	// e.g. "python" or "conda run --no-capture-output -n gs python".
	Python string `json:"python" flag:"python" desc:"Shell-quoted command that runs the training script"`
	// TrainScript is the training script path, passed as the first argument to Python.
	TrainScript string `json:"train-script" flag:"train-script" desc:"Training script path"`

	// SourcePath is the root directory of one scene's input data.
	SourcePath string `json:"source-path" flag:"source-path" desc:"Scene source directory (passed as -s)"`
	// ImageDir is the image directory name under SourcePath.
	ImageDir string `json:"image-dir" flag:"image-dir" desc:"Image directory name (passed as -i)"`
	// FeatureDir is the feature directory name under SourcePath.
	FeatureDir string `json:"feature-dir" flag:"feature-dir" desc:"Feature directory name (passed as -f)"`
	// OutputLabel names the output directory under "SourcePath/outputs".
	OutputLabel string `json:"output-label" flag:"output-label" desc:"Output directory label under <source-path>/outputs"`
	// Iterations is the number of training iterations.
	Iterations int `json:"iterations" flag:"iterations" desc:"Number of training iterations"`
	// Eval is true to pass "--eval" to the training script.
	Eval bool `json:"eval" flag:"eval" desc:"Pass --eval to the training script"`
	// ExtraArgs are shell-quoted arguments appended after the fixed arguments.
	ExtraArgs string `json:"extra-args,omitempty" flag:"extra-args" desc:"Shell-quoted arguments appended to the training command"`

	// WorkDir is the working directory of the training process.
	// If empty, the launcher's working directory is used.
	WorkDir string `json:"work-dir,omitempty" flag:"work-dir" desc:"Working directory of the training process"`
	// Timeout bounds the training process. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty" flag:"timeout" desc:"Training timeout (0 for none)"`

	// Preflight is true to check the scene layout before launching.
	Preflight bool `json:"preflight" flag:"preflight" desc:"Check the scene layout before launching"`

	// ProvenancePath is the file copied into the output directory after training.
	// Defaults to ConfigPath. When both are empty, the resolved configuration
	// is written as "launch.yaml" instead.
	ProvenancePath string `json:"provenance-path,omitempty" flag:"provenance-path" desc:"File copied into the output directory after training"`
	// ProvenanceOnFailure is true to copy the provenance file even when training fails.
	ProvenanceOnFailure bool `json:"provenance-on-failure" flag:"provenance-on-failure" desc:"Copy the provenance file even if training fails"`

	// Region is the AWS region for uploads and metrics.
	// If empty, the SDK default chain decides.
	Region string `json:"region,omitempty" flag:"region" desc:"AWS region"`
	// S3Bucket is the bucket to upload the launch record and artifacts to.
	// Uploads are skipped when empty.
	S3Bucket string `json:"s3-bucket,omitempty" flag:"s3-bucket" desc:"S3 bucket to upload artifacts to (empty to skip)"`
	// S3Prefix is the key prefix for uploads.
	S3Prefix string `json:"s3-prefix,omitempty" flag:"s3-prefix" desc:"S3 key prefix"`

	// EmitMetrics is true to publish run metrics to CloudWatch.
	EmitMetrics bool `json:"emit-metrics" flag:"emit-metrics" desc:"Publish run metrics to CloudWatch"`
	// MetricNamespace is the CloudWatch namespace.
	MetricNamespace string `json:"metric-namespace,omitempty" flag:"metric-namespace" desc:"CloudWatch metric namespace"`

	// ResolvedOutputPath is the output directory, set by "ValidateAndSetDefaults".
	ResolvedOutputPath string `json:"resolved-output-path,omitempty" read-only:"true" flag:"-"`
}

// OutputPath returns "SourcePath/outputs/OutputLabel".
// It is a plain concatenation so that the external tool sees exactly this string.
func (cfg *Config) OutputPath() string {
	return cfg.SourcePath + "/outputs/" + cfg.OutputLabel
}

// HostPath resolves p for the launcher's own file access.
// A relative p is taken relative to WorkDir, where the training process runs,
// so that it names the same file the training script sees.
func (cfg *Config) HostPath(p string) string {
	if cfg.WorkDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.WorkDir, p)
}

// SceneName returns the last element of SourcePath.
func (cfg *Config) SceneName() string {
	return filepath.Base(cfg.SourcePath)
}

// Load loads configuration from YAML.
//
// Example usage:
//
//	import "github.com/splatloc/train-launcher/launchconfig"
//	cfg := launchconfig.Load("test.yaml")
//	err := cfg.ValidateAndSetDefaults()
//
// Do not set default values in this function.
// "ValidateAndSetDefaults" must be called separately,
// to prevent overwriting previous data when loaded from disks.
func Load(p string) (cfg *Config, err error) {
	var d []byte
	d, err = os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	cfg = new(Config)
	if err = yaml.Unmarshal(d, cfg); err != nil {
		return nil, err
	}

	var ap string
	ap, err = filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = ap
	return cfg, nil
}

// YAML returns the configuration in YAML.
func (cfg *Config) YAML() ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Sync persists current configuration and states to disk.
func (cfg *Config) Sync() (err error) {
	if cfg.ConfigPath == "" {
		return fmt.Errorf("empty config path")
	}
	if !filepath.IsAbs(cfg.ConfigPath) {
		var p string
		p, err = filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to 'filepath.Abs(%s)' %v", cfg.ConfigPath, err)
		}
		cfg.ConfigPath = p
	}

	var d []byte
	d, err = cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to 'yaml.Marshal' %v", err)
	}
	if err = os.WriteFile(cfg.ConfigPath, d, 0600); err != nil {
		return fmt.Errorf("failed to write file %q (%v)", cfg.ConfigPath, err)
	}
	return nil
}
