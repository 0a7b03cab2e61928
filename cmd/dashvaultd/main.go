// Command dashvaultd runs the dashvault ingestion daemon in the foreground.
// Most deployments start it through the CLI (`dashvault daemon`); this
// binary exists for service managers that want a dedicated executable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"dashvault/internal/config"
	"dashvault/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
