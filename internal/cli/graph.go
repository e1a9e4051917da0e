package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pmll/casefile/internal/config"
	"github.com/pmll/casefile/internal/graph"
)

func init() {
	pathCmd := &cobra.Command{
		Use:   "path [from] [to]",
		Short: "Shortest relation path between two entities",
		Args:  cobra.ExactArgs(2),
		Run:   runPath,
	}
	pathCmd.Flags().String("case", "case.yaml", "Case file")

	centralityCmd := &cobra.Command{
		Use:   "centrality",
		Short: "Rank entities by degree centrality",
		Run:   runCentrality,
	}
	centralityCmd.Flags().String("case", "case.yaml", "Case file")
	centralityCmd.Flags().Bool("infer", false, "Add inferred relations first, as the case file asks")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the relationship graph as CSV",
		Run:   runExport,
	}
	exportCmd.Flags().String("case", "case.yaml", "Case file")
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().Bool("infer", false, "Add inferred relations first, as the case file asks")

	RootCmd.AddCommand(pathCmd, centralityCmd, exportCmd)
}

func loadGraph(cmd *cobra.Command) *graph.Graph {
	casePath, _ := cmd.Flags().GetString("case")
	c, err := config.LoadCase(casePath)
	if err != nil {
		exitErr("load case", err)
	}

	g := graph.New()
	for _, r := range c.Relations {
		g.AddRelation(r.Source, r.Target, r.Relation, r.Confidence)
	}
	if infer, _ := cmd.Flags().GetBool("infer"); infer && c.Infer >= 0 {
		g.InferRelationships(c.Infer)
	}
	return g
}

func runPath(cmd *cobra.Command, args []string) {
	g := loadGraph(cmd)
	printJSON(g.ShortestPath(args[0], args[1]))
}

func runCentrality(cmd *cobra.Command, args []string) {
	g := loadGraph(cmd)
	printJSON(g.CentralityRanking())
}

func runExport(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	g := loadGraph(cmd)

	if out == "" {
		if err := g.Export(os.Stdout); err != nil {
			exitErr("export", err)
		}
		return
	}
	if err := exportGraph(g, out); err != nil {
		exitErr("export", err)
	}
}
