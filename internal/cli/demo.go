package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lazypower/glyphwheel/internal/config"
	"github.com/lazypower/glyphwheel/internal/engine"
)

var (
	demoIntensity float64
	demoCycles    int
	demoSeed      int64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the reference stress scenario in-process",
	Long: "Builds three anchor nodes (0.80, 0.85, 0.82) and two dynamic nodes at 0.5, " +
		"applies one stress run and prints the graph before and after. No server or database is used.",
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().Float64Var(&demoIntensity, "intensity", 0.5, "stress intensity in [0,1]")
	demoCmd.Flags().IntVar(&demoCycles, "cycles", 50, "stress cycles")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 1, "random seed (0 seeds from the clock)")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultEngine()
	cfg.Seed = demoSeed
	cfg.CoreNodes = []config.CoreNode{
		{Name: "anchor-a", Stability: 0.80, Kind: string(engine.KindAnchor)},
		{Name: "anchor-b", Stability: 0.85, Kind: string(engine.KindAnchor)},
		{Name: "anchor-c", Stability: 0.82, Kind: string(engine.KindAnchor)},
	}

	eng := engine.New(cfg)
	defer eng.Stop()
	eng.SeedCore()
	half := 0.5
	eng.AddNode("drift-a", engine.AddOptions{Stability: &half})
	eng.AddNode("drift-b", engine.AddOptions{Stability: &half})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "before:")
	printStatus(out, eng.Status())

	rep := eng.ApplyStress(demoIntensity, demoCycles)
	if rep.Refused() {
		fmt.Fprintf(out, "\nstress refused: %s\n", rep.Reason)
		return nil
	}
	fmt.Fprintf(out, "\nstress intensity=%.2f cycles=%d touched=%d links=%d\n\n",
		rep.Intensity, rep.Cycles, rep.NodesTouched, rep.LinksFormed)
	fmt.Fprintln(out, "after:")
	printStatus(out, eng.Status())
	return nil
}

func printStatus(out io.Writer, st engine.Status) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tKIND\tARCHETYPE\tSTABILITY\tLINKS")
	for _, n := range st.Nodes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%.3f\t%d\n", n.Name, n.Kind, n.Archetype, n.Stability, n.LinkCount)
	}
	tw.Flush()
	fmt.Fprintf(out, "  entropy=%.3f coherence=%.3f depth=%d nodes=%d/%d\n",
		st.Entropy, st.Coherence, st.Depth, st.NodeCount, st.MaxNodes)
}
