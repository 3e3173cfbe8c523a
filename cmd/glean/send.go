package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/config"
	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/glean"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrictype"
	"github.com/cuemby/glean/pkg/pings"
	"github.com/cuemby/glean/pkg/types"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Record metrics and send a ping",
	Long: `Start a client, record the given metrics into a ping, submit it and
wait for the upload to finish.

Metrics are recorded in the "cli" category with ping lifetime.

Examples:
  # Send a ping with a counter and two events to a local collector
  glean send --app-id demo --endpoint http://127.0.0.1:9080 \
    --ping custom --counter launches --event ui.click --event ui.close

  # Send over gRPC, tagged for the debug viewer
  glean send --app-id demo --transport grpc --grpc-target 127.0.0.1:9090 \
    --string channel=nightly --debug-view-tag my-test`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("config", "c", "", "YAML configuration file")
	sendCmd.Flags().String("app-id", "", "Application ID (overrides the configuration)")
	sendCmd.Flags().String("endpoint", "", "Server endpoint (overrides the configuration)")
	sendCmd.Flags().String("transport", "", "Upload transport: http or grpc")
	sendCmd.Flags().String("grpc-target", "", "gRPC dial target when --transport=grpc")
	sendCmd.Flags().String("ping", "custom", "Name of the ping to send")
	sendCmd.Flags().String("reason", "", "Reason the ping is sent")
	sendCmd.Flags().StringSlice("counter", nil, "Counter to increment by one (repeatable)")
	sendCmd.Flags().StringSlice("event", nil, "Event to record as category.name (repeatable)")
	sendCmd.Flags().StringToString("string", nil, "String metrics as name=value")
	sendCmd.Flags().Bool("log-pings", false, "Log ping payloads as they are assembled")
	sendCmd.Flags().String("debug-view-tag", "", "Tag pings for the debug viewer")
	sendCmd.Flags().StringSlice("source-tag", nil, "Source tags sent with the ping")
	sendCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the upload")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applySendOverrides(cmd, cfg)
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-json") {
		log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	}

	pingName, _ := cmd.Flags().GetString("ping")
	reason, _ := cmd.Flags().GetString("reason")
	counters, _ := cmd.Flags().GetStringSlice("counter")
	recorded, _ := cmd.Flags().GetStringSlice("event")
	strs, _ := cmd.Flags().GetStringToString("string")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	g, err := glean.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %v", err)
	}

	var reasons []string
	if reason != "" {
		reasons = append(reasons, reason)
	}
	ping := pings.NewPingType(g.Maker(), pingName, true, true, reasons...)

	sub := g.Context().Broker.Subscribe()
	var wg sync.WaitGroup
	var uploaded int
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := range sub {
			switch n.Type {
			case events.NotificationPingUploaded:
				uploaded++
				fmt.Printf("✓ Uploaded %s ping %s\n", n.Ping, n.DocumentID)
			case events.NotificationPingDropped:
				fmt.Printf("✗ Dropped %s ping %s: %s\n", n.Ping, n.DocumentID, n.Message)
			case events.NotificationPingRetrying:
				fmt.Printf("… Retrying %s ping %s: %s\n", n.Ping, n.DocumentID, n.Message)
			}
		}
	}()

	g.Initialize(true)

	if tag, _ := cmd.Flags().GetString("debug-view-tag"); tag != "" {
		g.SetDebugViewTag(tag)
	}
	if tags, _ := cmd.Flags().GetStringSlice("source-tag"); len(tags) > 0 {
		g.SetSourceTags(tags)
	}
	if logPings, _ := cmd.Flags().GetBool("log-pings"); logPings {
		g.SetLogPings(true)
	}

	for _, name := range counters {
		metrictype.NewCounter(g.Context(), cliMetric(name, pingName)).Add(1)
	}
	for name, value := range strs {
		metrictype.NewString(g.Context(), cliMetric(name, pingName)).Set(value)
	}
	for _, id := range recorded {
		category, name, ok := strings.Cut(id, ".")
		if !ok {
			category, name = "cli", id
		}
		meta := types.CommonMetricData{
			Category:    category,
			Name:        name,
			SendInPings: []string{pingName},
			Lifetime:    types.LifetimePing,
		}
		metrictype.NewEvent(g.Context(), meta).Record(nil)
	}

	ping.Submit(reason)
	fmt.Printf("Submitted %s ping to %s\n", pingName, cfg.ServerEndpoint)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := g.TestBlockOnUploads(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: upload did not finish: %v\n", err)
	}
	if err := g.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown: %v", err)
	}
	wg.Wait()

	if uploaded == 0 {
		fmt.Println("No ping was uploaded")
	}
	return nil
}

func applySendOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("app-id"); v != "" {
		cfg.ApplicationID = v
	}
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.ServerEndpoint = v
	}
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		cfg.Upload.Transport = v
	}
	if v, _ := cmd.Flags().GetString("grpc-target"); v != "" {
		cfg.Upload.GRPCTarget = v
	}
}

func cliMetric(name, ping string) types.CommonMetricData {
	return types.CommonMetricData{
		Category:    "cli",
		Name:        name,
		SendInPings: []string{ping},
		Lifetime:    types.LifetimePing,
	}
}
