// Package version implements "train-launcher version".
package version

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/splatloc/train-launcher/version"
)

// NewCommand returns a new "version" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints out train-launcher version",
		Run:   versionFunc,
	}
}

func versionFunc(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), version.Version())
}
