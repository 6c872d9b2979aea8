package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var (
		jsonOut  bool
		shortOut bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case jsonOut:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetInfo())
			case shortOut:
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
			default:
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output version as JSON")
	cmd.Flags().BoolVar(&shortOut, "short", false, "print only the version number")

	return cmd
}
