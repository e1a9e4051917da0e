package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "send [payload.json]",
		Short: "Deliver a JSON payload to remote endpoints",
		Long:  "POST a JSON document to each endpoint with retries and print the per-endpoint outcome.",
		Args:  cobra.ExactArgs(1),
		Run:   runSend,
	}

	cmd.Flags().StringSliceP("endpoint", "e", nil, "Endpoint URL (repeatable, default from config)")
	cmd.Flags().StringToString("header", nil, "Extra request header, key=value")
	cmd.Flags().Int("attempts", 0, "Attempts per endpoint (default from config)")

	RootCmd.AddCommand(cmd)
}

func runSend(cmd *cobra.Command, args []string) {
	endpoints, _ := cmd.Flags().GetStringSlice("endpoint")
	headers, _ := cmd.Flags().GetStringToString("header")
	attempts, _ := cmd.Flags().GetInt("attempts")

	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()
	if len(endpoints) == 0 {
		endpoints = cfg.Transmit.Endpoints
	}
	if len(endpoints) == 0 {
		exitErr("send", fmt.Errorf("no endpoints configured"))
	}
	if attempts > 0 {
		cfg.Transmit.MaxAttempts = attempts
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitErr("read payload", err)
	}
	var payload json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		exitErr("parse payload", err)
	}

	sender := newSender(cfg, logger, prometheus.NewRegistry())
	results := sender.SendToAll(cmd.Context(), endpoints, payload, headers)
	printJSON(results)

	for _, ok := range results {
		if !ok {
			os.Exit(1)
		}
	}
}
