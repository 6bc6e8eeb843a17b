// Command bandstandd runs the bandstand ingestion daemon in the
// foreground. The bandstand CLI can also launch the daemon as a detached
// process; this binary exists for service managers that want a dedicated
// daemon entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"bandstand/internal/config"
	"bandstand/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override configured log level")
	socketPath := flag.String("socket", "", "override IPC socket path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := daemonrun.Options{
		LogLevel:   *logLevel,
		SocketPath: *socketPath,
	}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
