package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pmll/casefile/internal/investigation"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decrypt [report-id]",
		Short: "Decrypt a persisted report with its retained key",
		Long:  "Decrypt the report artifact using the key retained in the archive database. The key is consumed on success.",
		Args:  cobra.ExactArgs(1),
		Run:   runDecrypt,
	}

	cmd.Flags().StringP("artifact", "a", "", "Artifact path (default from config)")

	RootCmd.AddCommand(cmd)
}

func runDecrypt(cmd *cobra.Command, args []string) {
	artifact, _ := cmd.Flags().GetString("artifact")

	cfg := loadConfig()
	logger := newLogger(cfg)
	defer logger.Sync()
	if artifact == "" {
		artifact = cfg.Report.Artifact
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	inv := newInvestigation(cfg, s, logger, prometheus.NewRegistry())
	snap, err := inv.OpenReport(cmd.Context(), args[0], artifact)
	if errors.Is(err, investigation.ErrReportNotReady) {
		fmt.Fprintf(os.Stderr, "report %s is not ready: no key retained\n", args[0])
		os.Exit(2)
	}
	if err != nil {
		exitErr("decrypt", err)
	}
	printJSON(snap)
}
