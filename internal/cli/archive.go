package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pmll/casefile/internal/model"
	"github.com/pmll/casefile/internal/store"
)

func init() {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the long-term archive",
	}

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search archived events by keyword",
		Args:  cobra.MinimumNArgs(1),
		Run:   runArchiveSearch,
	}
	searchCmd.Flags().String("source", "", "Filter by source")
	searchCmd.Flags().String("kind", "", "Filter by kind (observation or key)")
	searchCmd.Flags().IntP("limit", "l", 20, "Max results")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics",
		Run:   runArchiveStats,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export every archived event as JSON",
		Run:   runArchiveExport,
	}
	exportCmd.Flags().String("source", "", "Filter by source")

	archiveCmd.AddCommand(searchCmd, statsCmd, exportCmd)
	RootCmd.AddCommand(archiveCmd)
}

func runArchiveSearch(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")
	if kind != "" && !model.ValidKinds[kind] {
		exitErr("search", fmt.Errorf("unknown kind %q", kind))
	}

	s, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:  query,
		Source: source,
		Kind:   kind,
		Limit:  limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}

func runArchiveStats(cmd *cobra.Command, args []string) {
	s, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}

func runArchiveExport(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	s, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	events, err := s.All(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if source == "" || e.Source == source {
			out = append(out, e)
		}
	}
	printJSON(out)
}
