package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"authdns/config"
	"authdns/log"
	"authdns/server"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "start the authdns server (default command)",
		RunE:  startServer,
	}
}

// startServer loads the config, builds the server and blocks until
// SIGINT/SIGTERM, then drains within the 5s deadline (spec.md §5).
func startServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("can't start server: %w", err)
	}

	srv.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	<-signals

	log.PrefixedLog("server").Info("terminating...")

	return srv.Stop()
}
