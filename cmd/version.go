// SPDX-License-Identifier: EPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ik5/audplay"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and supported formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "audplay %s\nformats: %s\n",
				Version, strings.Join(audplay.DefaultRegistry().Formats(), ", "))
		},
	}
}
