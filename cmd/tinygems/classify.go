package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinygems/tinygems/internal/identity"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <input>",
		Short: "Report whether input is an artist name or a platform profile URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := identity.Classify(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeIndentedJSON(cmd.OutOrStdout(), ref)
		},
	}
}
