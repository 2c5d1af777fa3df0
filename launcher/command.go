package launcher

import (
	"fmt"
	"strconv"

	"github.com/kballard/go-shellquote"
	"github.com/splatloc/train-launcher/launchconfig"
)

// BuildArgs returns the training script arguments in their fixed order:
// source path, output path, image directory, feature directory,
// iteration count, and the evaluation flag.
func BuildArgs(cfg *launchconfig.Config) []string {
	args := []string{
		"-s", cfg.SourcePath,
		"-m", cfg.OutputPath(),
		"-i", cfg.ImageDir,
		"-f", cfg.FeatureDir,
		"--iterations", strconv.Itoa(cfg.Iterations),
	}
	if cfg.Eval {
		args = append(args, "--eval")
	}
	return args
}

// Command returns the full argv: the Python command, the training script,
// the fixed arguments, then any extra arguments.
func Command(cfg *launchconfig.Config) ([]string, error) {
	argv, err := shellquote.Split(cfg.Python)
	if err != nil {
		return nil, fmt.Errorf("failed to parse python command %q (%v)", cfg.Python, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty python command")
	}
	extra, err := shellquote.Split(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extra args %q (%v)", cfg.ExtraArgs, err)
	}

	argv = append(argv, cfg.TrainScript)
	argv = append(argv, BuildArgs(cfg)...)
	return append(argv, extra...), nil
}
