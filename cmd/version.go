package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Args:  cobra.NoArgs,
		Short: "print the version number of authdns",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("authdns")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Build time: %s\n", buildTime)
		},
	}
}
