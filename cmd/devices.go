// SPDX-License-Identifier: EPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ik5/audplay/internal/device"
)

func devicesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List playback devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := device.ListPlaybackDevices(a.settings.Device.Backend, a.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "no playback devices found")
				return nil
			}
			for _, info := range infos {
				mark := " "
				if info.Default {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %2d  %s (%s)\n", mark, info.Index, info.Name, info.ID)
			}
			return nil
		},
	}

	cmd.Flags().String("backend", "auto", "Audio backend to enumerate")

	return cmd
}
