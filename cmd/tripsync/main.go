// Command tripsync is the offline-tolerant command-line client for the
// family trips API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/family-trips/internal/cli"
	"github.com/sakif/family-trips/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultClientPath, "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Run(ctx, cli.Options{
		ConfigPath: *configPath,
		Out:        os.Stdout,
		Err:        os.Stderr,
	}, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "tripsync: %v\n", err)
		return 1
	}
	return 0
}
