package cli

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmll/casefile/internal/config"
	"github.com/pmll/casefile/internal/feed"
	"github.com/pmll/casefile/internal/graph"
	"github.com/pmll/casefile/internal/investigation"
	"github.com/pmll/casefile/internal/model"
	"github.com/pmll/casefile/internal/store"
)

type runResult struct {
	ReportID   string                `json:"report_id"`
	Artifact   string                `json:"artifact"`
	Export     string                `json:"export"`
	MotivePath []string              `json:"motive_path"`
	Inferred   []model.Relation      `json:"inferred,omitempty"`
	Snapshot   *model.Snapshot       `json:"snapshot,omitempty"`
	Deliveries map[string]bool       `json:"deliveries,omitempty"`
	Tip        *bool                 `json:"tip_delivered,omitempty"`
	Summary    investigation.Summary `json:"summary"`
	Memory     *store.Stats          `json:"memory"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline over a case file",
		Long: `Log the case events and simulated updates, build the relationship graph,
generate and persist an encrypted report, decrypt it after advancing the
clock, and deliver it to the configured endpoints.

With --no-open the report is only persisted; its key stays pending in the
archive database for a later "casefile decrypt <report-id>".`,
		Run: runRun,
	}

	cmd.Flags().String("case", "case.yaml", "Case file")
	cmd.Flags().Int("updates", -1, "Simulated updates to ingest (default from config)")
	cmd.Flags().Bool("no-send", false, "Skip transmission")
	cmd.Flags().Bool("no-open", false, "Persist the report and leave its key pending; skips decrypt and transmission")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running")

	RootCmd.AddCommand(cmd)
}

func caseObservations(c *config.Case) []investigation.Observation {
	obs := make([]investigation.Observation, len(c.Events))
	for i, e := range c.Events {
		obs[i] = investigation.Observation{Content: e.Content, Source: e.Source, Confidence: e.Confidence}
	}
	return obs
}

func runRun(cmd *cobra.Command, args []string) {
	casePath, _ := cmd.Flags().GetString("case")
	updates, _ := cmd.Flags().GetInt("updates")
	noSend, _ := cmd.Flags().GetBool("no-send")
	noOpen, _ := cmd.Flags().GetBool("no-open")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	ctx := cmd.Context()

	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()

	c, err := config.LoadCase(casePath)
	if err != nil {
		exitErr("load case", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	reg := prometheus.NewRegistry()
	stop := serveMetrics(metricsAddr, reg, logger)
	defer stop()

	inv := newInvestigation(cfg, s, logger, reg)

	if err := inv.Ingest(ctx, caseObservations(c)); err != nil {
		exitErr("ingest", err)
	}
	if updates < 0 {
		updates = cfg.Simulator.Count
	}
	if updates > 0 {
		sim := feed.NewSimulator(cfg.Simulator.Interval, cfg.Memory.Epoch)
		if _, err := inv.IngestUpdates(ctx, sim.Stream(ctx, updates)); err != nil {
			exitErr("ingest updates", err)
		}
	}
	if cfg.Feed.URL != "" {
		b, err := feed.NewFetcher(cfg.Feed.URL, cfg.Transmit.Token, nil, logger).Fetch(ctx)
		if err != nil {
			logger.Warn("bulletin skipped", zap.Error(err))
		} else if _, err := inv.IngestBulletin(ctx, b); err != nil {
			exitErr("ingest bulletin", err)
		}
	}

	inv.Relate(c.Relations)
	var inferred []model.Relation
	if c.Infer >= 0 {
		inferred = inv.Graph().InferRelationships(c.Infer)
	}
	if err := exportGraph(inv.Graph(), cfg.Report.Export); err != nil {
		exitErr("export graph", err)
	}

	rep, err := inv.GenerateReport(ctx, investigation.ReportRequest{
		From:  c.Investigate.From,
		To:    c.Investigate.To,
		Notes: c.Notes,
		Extra: c.Extra,
	}, cfg.Report.Artifact)
	if err != nil {
		exitErr("generate report", err)
	}

	res := runResult{
		ReportID:   rep.ID,
		Artifact:   rep.Path,
		Export:     cfg.Report.Export,
		MotivePath: rep.MotivePath,
		Inferred:   inferred,
	}

	if !noOpen {
		inv.Memory().AdvanceClock(cfg.Memory.Advance)
		snap, err := inv.OpenReport(ctx, rep.ID, rep.Path)
		if err != nil {
			exitErr("open report", err)
		}
		res.Snapshot = &snap
	}

	if !noOpen && !noSend {
		snap := *res.Snapshot
		if len(cfg.Transmit.Endpoints) > 0 {
			res.Deliveries = inv.Transmit(ctx, cfg.Transmit.Endpoints, snap)
		}
		if cfg.Transmit.TipEndpoint != "" {
			pkg := inv.Package(snap, c.Findings)
			ok := inv.Transmit(ctx, []string{cfg.Transmit.TipEndpoint}, pkg)[cfg.Transmit.TipEndpoint]
			res.Tip = &ok
		}
	}

	if res.Summary, err = inv.Summary(ctx); err != nil {
		exitErr("summary", err)
	}
	if res.Memory, err = inv.Memory().Stats(ctx); err != nil {
		exitErr("memory stats", err)
	}
	printJSON(res)
}

func exportGraph(g *graph.Graph, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
