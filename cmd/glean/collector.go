package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/glean/pkg/api"
	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/spf13/cobra"
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run a local ingestion collector",
	Long: `Run a local stand-in for the telemetry endpoint.

Pings are accepted over HTTP (POST /submit/<app>/<ping>/<version>/<id>) and
over gRPC (glean.ingestion.v1.Ingestion/Submit). The HTTP listener also
serves /health, /ready and /metrics.

Examples:
  # Collect on the default ports and print every ping as a JSON line
  glean collector --print

  # Point a client at it
  glean send --endpoint http://127.0.0.1:9080 --ping custom`,
	RunE: runCollector,
}

func init() {
	collectorCmd.Flags().String("http-addr", "127.0.0.1:9080", "Address for HTTP ingestion, health and metrics")
	collectorCmd.Flags().String("grpc-addr", "127.0.0.1:9090", "Address for gRPC ingestion (empty to disable)")
	collectorCmd.Flags().Int("keep", 1000, "Number of received pings kept in memory")
	collectorCmd.Flags().Bool("print", false, "Print received pings to stdout as JSON lines")
}

func runCollector(cmd *cobra.Command, args []string) error {
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	grpcAddr, _ := cmd.Flags().GetString("grpc-addr")
	keep, _ := cmd.Flags().GetInt("keep")
	printPings, _ := cmd.Flags().GetBool("print")

	var collector *api.Collector
	if printPings {
		collector = api.NewCollector(keep, os.Stdout)
	} else {
		collector = api.NewCollector(keep, nil)
	}

	metrics.SetVersion(core.Version)
	critical := []string{"http"}
	if grpcAddr != "" {
		critical = append(critical, "grpc")
	}
	metrics.SetCriticalComponents(critical...)

	errCh := make(chan error, 2)

	healthServer := api.NewHealthServer(collector)
	go func() {
		metrics.SetComponentStatus("http", nil)
		if err := healthServer.Start(httpAddr); err != nil {
			metrics.SetComponentStatus("http", err)
			errCh <- fmt.Errorf("HTTP server error: %v", err)
		}
	}()
	fmt.Fprintf(os.Stderr, "HTTP ingestion listening on %s\n", httpAddr)

	var grpcServer *api.Server
	if grpcAddr != "" {
		grpcServer = api.NewServer(collector)
		go func() {
			metrics.SetComponentStatus("grpc", nil)
			if err := grpcServer.Start(grpcAddr); err != nil {
				metrics.SetComponentStatus("grpc", err)
				errCh <- fmt.Errorf("gRPC server error: %v", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "gRPC ingestion listening on %s\n", grpcAddr)
	}

	fmt.Fprintln(os.Stderr, "Collector is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	if grpcServer != nil {
		grpcServer.Stop()
	}
	fmt.Fprintf(os.Stderr, "✓ Collected %d pings\n", len(collector.Received()))
	return nil
}
