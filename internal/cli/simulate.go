package cli

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pmll/casefile/internal/feed"
	"github.com/pmll/casefile/internal/investigation"
)

func init() {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Stream synthetic updates into memory",
		Long:  "Generate synthetic real-time updates at a fixed interval, log each one, and print it as a JSON line.",
		Run:   runSimulate,
	}

	cmd.Flags().IntP("count", "n", 0, "Number of updates (default from config)")
	cmd.Flags().Duration("interval", 0, "Interval between updates (default from config)")

	RootCmd.AddCommand(cmd)
}

func runSimulate(cmd *cobra.Command, args []string) {
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")
	ctx := cmd.Context()

	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()
	if count <= 0 {
		count = cfg.Simulator.Count
	}
	if interval <= 0 {
		interval = cfg.Simulator.Interval
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inv := newInvestigation(cfg, s, logger, prometheus.NewRegistry())
	sim := feed.NewSimulator(interval, cfg.Memory.Epoch)

	for u := range sim.Stream(ctx, count) {
		if _, err := inv.Memory().LogEvent(ctx, u.Data, investigation.SourceRealtime, 1.0); err != nil {
			exitErr("log update", err)
		}
		b, _ := json.Marshal(u)
		fmt.Println(string(b))
	}

	stats, err := inv.Memory().Stats(ctx)
	if err != nil {
		exitErr("memory stats", err)
	}
	printJSON(stats)
}
