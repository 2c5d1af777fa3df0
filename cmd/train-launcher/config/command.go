// Package config implements "train-launcher config".
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/splatloc/train-launcher/launchconfig"
)

var path string

// NewCommand returns a new "config" command.
func NewCommand() *cobra.Command {
	ac := &cobra.Command{
		Use:   "config <subcommand>",
		Short: "Configuration commands",
	}
	ac.AddCommand(newCreate())
	return ac
}

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Writes a launch configuration with default values",
		Long:  "Configuration values are overwritten by environment variables.",
		RunE:  createFunc,
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Configuration file path to write")
	return cmd
}

func createFunc(cmd *cobra.Command, args []string) error {
	if path == "" {
		return fmt.Errorf("'--path' flag is not specified")
	}
	cfg := launchconfig.NewDefault()

	if err := cfg.UpdateFromEnvs(); err != nil {
		return fmt.Errorf("failed to load configuration from environment variables (%w)", err)
	}
	cfg.ConfigPath = path
	if err := cfg.Sync(); err != nil {
		return err
	}
	if cfg.SourcePath != "" {
		if err := cfg.ValidateAndSetDefaults(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: configuration %q does not validate yet (%v)\n", path, err)
		}
	}

	txt, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to read configuration %q (%w)", path, err)
	}
	fmt.Println(string(txt))
	fmt.Fprintf(os.Stderr, "'train-launcher config create' success (set 'source-path' before 'train-launcher run --config %s')\n", path)
	return nil
}
