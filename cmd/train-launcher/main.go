// train-launcher runs a Gaussian-splatting training script for one scene
// and copies the launch provenance into its output directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/splatloc/train-launcher/cmd/train-launcher/config"
	"github.com/splatloc/train-launcher/cmd/train-launcher/run"
	"github.com/splatloc/train-launcher/cmd/train-launcher/version"
)

var rootCmd = &cobra.Command{
	Use:        "train-launcher",
	Short:      "Training launcher CLI",
	SuggestFor: []string{"train"},
}

func init() {
	cobra.EnablePrefixMatching = true
}

func init() {
	rootCmd.AddCommand(
		run.NewCommand(),
		config.NewCommand(),
		version.NewCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "train-launcher failed %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
