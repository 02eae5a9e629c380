package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// nolint:gochecknoglobals
var (
	version    = "undefined"
	buildTime  = "undefined"
	configPath string
)

// NewRootCommand builds the authdns CLI: a root command that serves by
// default, plus explicit "serve" and "version" subcommands (SPEC_FULL.md
// [CLI]).
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "authdns",
		Short: "authdns is an authoritative DNS server",
		Long: `An authoritative DNS server with optional recursive
forwarding and DNSSEC signing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd, args)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yml", "path to config file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the root command and exits the process on error, the way
// the teacher's cmd.Execute does.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
