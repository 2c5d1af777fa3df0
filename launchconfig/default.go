package launchconfig

import "github.com/splatloc/train-launcher/pkg/logutil"

const (
	// DefaultPython runs the training script with the interpreter on PATH.
	DefaultPython = "python"
	// DefaultTrainScript is the training entrypoint, relative to WorkDir.
	DefaultTrainScript = "train.py"
	// DefaultImageDir is the raw image directory name.
	DefaultImageDir = "img648x484_raw"
	// DefaultFeatureDir is the extracted feature directory name.
	DefaultFeatureDir = "img648x484_feature"
	// DefaultOutputLabel is the output directory label.
	DefaultOutputLabel = "9"
	// DefaultIterations is the number of training iterations.
	DefaultIterations = 10000

	DefaultS3Prefix        = "train-launcher"
	DefaultMetricNamespace = "train-launcher"
)

// NewDefault returns a default configuration.
// SourcePath has no default and must be set before validation.
func NewDefault() *Config {
	return &Config{
		LogLevel:   logutil.DefaultLogLevel,
		LogOutputs: []string{"stderr"},

		Python:      DefaultPython,
		TrainScript: DefaultTrainScript,

		ImageDir:    DefaultImageDir,
		FeatureDir:  DefaultFeatureDir,
		OutputLabel: DefaultOutputLabel,
		Iterations:  DefaultIterations,
		Eval:        true,

		Preflight: true,

		S3Prefix:        DefaultS3Prefix,
		MetricNamespace: DefaultMetricNamespace,
	}
}
