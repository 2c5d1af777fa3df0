package run

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/splatloc/train-launcher/launchconfig"
	"github.com/urfave/sflags/gen/gpflag"
)

// bindFlags registers one flag per tagged Config field, with defaults from NewDefault.
func bindFlags(fs *pflag.FlagSet) error {
	if err := gpflag.ParseTo(launchconfig.NewDefault(), fs); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}

// loadConfig resolves the launch configuration.
// Precedence, lowest first: defaults, the configuration file, environment variables, flags set on the command line.
func loadConfig(path string, flags *pflag.FlagSet) (cfg *launchconfig.Config, err error) {
	if path != "" {
		cfg, err = launchconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration %q (%w)", path, err)
		}
	} else {
		cfg = launchconfig.NewDefault()
	}

	if err = cfg.UpdateFromEnvs(); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment variables (%w)", err)
	}
	if err = applyFlags(cfg, flags); err != nil {
		return nil, err
	}

	if err = cfg.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("failed to validate configuration (%w)", err)
	}
	return cfg, nil
}

// applyFlags copies flags explicitly set on the command line into cfg.
func applyFlags(cfg *launchconfig.Config, flags *pflag.FlagSet) error {
	target, err := gpflag.Parse(cfg)
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		if target.Lookup(f.Name) == nil {
			return
		}
		if err := target.Set(f.Name, f.Value.String()); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
