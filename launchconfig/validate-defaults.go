package launchconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/splatloc/train-launcher/pkg/fileutil"
	"github.com/splatloc/train-launcher/pkg/logutil"
)

// ValidateAndSetDefaults returns an error for invalid configurations.
// And updates empty fields with default values.
// The config file is not rewritten; call "Sync" to persist.
func (cfg *Config) ValidateAndSetDefaults() error {
	if err := cfg.validateConfig(); err != nil {
		return fmt.Errorf("validateConfig failed [%v]", err)
	}
	if err := cfg.validateLaunch(); err != nil {
		return fmt.Errorf("validateLaunch failed [%v]", err)
	}
	if err := cfg.validateProvenance(); err != nil {
		return fmt.Errorf("validateProvenance failed [%v]", err)
	}

	cfg.ResolvedOutputPath = cfg.OutputPath()
	return nil
}

func (cfg *Config) validateConfig() error {
	if cfg.LogLevel == "" {
		cfg.LogLevel = logutil.DefaultLogLevel
	}
	if !logutil.IsValidLogLevel(cfg.LogLevel) {
		return fmt.Errorf("LogLevel is invalid %q", cfg.LogLevel)
	}
	if len(cfg.LogOutputs) == 0 {
		cfg.LogOutputs = []string{"stderr"}
	}
	if cfg.S3Prefix == "" {
		cfg.S3Prefix = DefaultS3Prefix
	}
	if cfg.MetricNamespace == "" {
		cfg.MetricNamespace = DefaultMetricNamespace
	}
	return nil
}

func (cfg *Config) validateLaunch() error {
	if cfg.Python == "" {
		cfg.Python = DefaultPython
	}
	args, err := shellquote.Split(cfg.Python)
	if err != nil {
		return fmt.Errorf("failed to parse Python %q (%v)", cfg.Python, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty Python command %q", cfg.Python)
	}
	if cfg.TrainScript == "" {
		return errors.New("empty TrainScript")
	}
	if _, err = shellquote.Split(cfg.ExtraArgs); err != nil {
		return fmt.Errorf("failed to parse ExtraArgs %q (%v)", cfg.ExtraArgs, err)
	}

	if cfg.SourcePath == "" {
		return errors.New("empty SourcePath")
	}
	cfg.SourcePath = strings.TrimRight(cfg.SourcePath, "/")
	if cfg.SourcePath == "" {
		return errors.New("SourcePath must not be the filesystem root")
	}
	if err = validateName("ImageDir", cfg.ImageDir); err != nil {
		return err
	}
	if err = validateName("FeatureDir", cfg.FeatureDir); err != nil {
		return err
	}
	if err = validateName("OutputLabel", cfg.OutputLabel); err != nil {
		return err
	}

	if cfg.Iterations <= 0 {
		return fmt.Errorf("Iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("Timeout must not be negative, got %v", cfg.Timeout)
	}
	if cfg.WorkDir != "" && !fileutil.IsDir(cfg.WorkDir) {
		return fmt.Errorf("WorkDir %q is not a directory", cfg.WorkDir)
	}
	return nil
}

// validateName checks a single path element.
func validateName(field, v string) error {
	switch {
	case v == "":
		return fmt.Errorf("empty %s", field)
	case v == "." || v == "..":
		return fmt.Errorf("%s %q is not a directory name", field, v)
	case strings.ContainsAny(v, `/\`):
		return fmt.Errorf("%s %q must be a single directory name", field, v)
	}
	return nil
}

func (cfg *Config) validateProvenance() error {
	if cfg.ProvenancePath == "" {
		cfg.ProvenancePath = cfg.ConfigPath
	}
	if cfg.ProvenancePath == "" {
		return nil
	}
	if !fileutil.Exist(cfg.ProvenancePath) {
		return fmt.Errorf("ProvenancePath %q does not exist", cfg.ProvenancePath)
	}
	if fileutil.IsDir(cfg.ProvenancePath) {
		return fmt.Errorf("ProvenancePath %q is a directory", cfg.ProvenancePath)
	}
	return nil
}
