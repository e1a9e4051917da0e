// Package cli implements the casefile CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmll/casefile/internal/config"
	"github.com/pmll/casefile/internal/graph"
	"github.com/pmll/casefile/internal/investigation"
	"github.com/pmll/casefile/internal/store"
	"github.com/pmll/casefile/internal/transmit"
)

var (
	cfgPath  string
	dbPath   string
	logLevel string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "casefile",
	Short: "Investigative event aggregation pipeline",
	Long:  "Ingest observations, relate entities, and produce encrypted case reports delivered to remote consumers.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default: $CASEFILE_CONFIG or ./casefile.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Archive database path (default: $CASEFILE_DB or ~/.casefile/casefile.db)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	if env := os.Getenv("CASEFILE_CONFIG"); env != "" {
		return env
	}
	return "casefile.yaml"
}

func loadConfig() config.Config {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func getDBPath(cfg config.Config) string {
	if cfg.DB != "" {
		return cfg.DB
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".casefile", "casefile.db")
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath(cfg))
}

func newLogger(cfg config.Config) *zap.Logger {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		exitErr("log level", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		exitErr("build logger", err)
	}
	return logger
}

func newSender(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) *transmit.Sender {
	b := cfg.Transmit.Backoff
	return transmit.NewSender(
		transmit.WithTimeout(cfg.Transmit.Timeout),
		transmit.WithPolicy(transmit.Policy{
			InitialDelay: b.Initial,
			MaxDelay:     b.Max,
			Multiplier:   b.Multiplier,
			Jitter:       b.Jitter,
		}),
		transmit.WithBearerToken(cfg.Transmit.Token),
		transmit.WithMaxAttempts(cfg.Transmit.MaxAttempts),
		transmit.WithLogger(logger),
		transmit.WithMetrics(transmit.NewMetrics(reg)),
	)
}

// newInvestigation builds a pipeline whose archive and key store are the
// SQLite database s.
func newInvestigation(cfg config.Config, s *store.SQLiteStore, logger *zap.Logger, reg prometheus.Registerer) *investigation.Investigation {
	mem := store.NewMemory(
		store.WithCapacity(cfg.Memory.Capacity),
		store.WithEpoch(cfg.Memory.Epoch),
		store.WithArchive(s),
		store.WithKeyStore(s),
		store.WithLogger(logger),
	)
	return investigation.New(
		investigation.WithMemory(mem),
		investigation.WithGraph(graph.New()),
		investigation.WithSender(newSender(cfg, logger, reg)),
		investigation.WithPackageSource(cfg.Report.Source),
		investigation.WithLogger(logger),
	)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
