package version

import (
	"fmt"

	"github.com/anchorlabs/anchor-edge/versioning"
	"github.com/spf13/cobra"
)

func GetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Returns the current version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version:    %s\n", versioning.Version)
			fmt.Printf("Commit:     %s\n", versioning.Commit)
			fmt.Printf("Build time: %s\n", versioning.BuildTime)
		},
	}
}
