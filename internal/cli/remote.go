package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/glyphwheel/internal/client"
	"github.com/lazypower/glyphwheel/internal/engine"
)

// Commands in this file talk to a running server.

var jsonOutput bool

func remote() (*client.Client, error) {
	c := client.New(serverURL)
	if !c.Healthy() {
		return nil, fmt.Errorf("glyphwheel server not reachable at %s (run `glyphwheel serve`)", c.URL())
	}
	return c, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(out io.Writer, rep engine.Report) {
	if rep.Refused() {
		fmt.Fprintf(out, "%s refused: %s", rep.Operation, rep.Reason)
		if rep.RetryAfter > 0 {
			fmt.Fprintf(out, " (retry in %.1fs)", rep.RetryAfter)
		}
		fmt.Fprintln(out)
		return
	}
	fmt.Fprintf(out, "%s completed: cycles=%d touched=%d links=%d depth=%d\n",
		rep.Operation, rep.Cycles, rep.NodesTouched, rep.LinksFormed, rep.Depth)
	fmt.Fprintf(out, "  coherence %.3f -> %.3f  entropy %.3f -> %.3f  improved=%t\n",
		rep.InitialCoherence, rep.FinalCoherence, rep.InitialEntropy, rep.FinalEntropy, rep.Improved)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph status from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		st, err := c.Status()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var (
	stressIntensity float64
	stressCycles    int
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Apply stress to the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		rep, err := c.Stress(stressIntensity, stressCycles)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

var recoverCycles int

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run recovery cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		rep, err := c.Recover(recoverCycles)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

var recalibrateCycles int

var recalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Run stabilizer recalibration cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		rep, err := c.Recalibrate(recalibrateCycles)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), rep)
		return nil
	},
}

var (
	addStability float64
	addKind      string
	addArchetype string
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		req := client.AddNodeRequest{Name: args[0], Kind: addKind, Archetype: addArchetype}
		if cmd.Flags().Changed("stability") {
			req.Stability = &addStability
		}
		n, err := c.AddNode(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s/%s) stability=%.3f\n", n.Name, n.Kind, n.Archetype, n.Stability)
		return nil
	},
}

var signalCmd = &cobra.Command{
	Use:   "signal <name> <change-pct>",
	Short: "Feed a percentage change into a signal node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pct float64
		if _, err := fmt.Sscan(args[1], &pct); err != nil {
			return fmt.Errorf("change-pct %q: %w", args[1], err)
		}
		c, err := remote()
		if err != nil {
			return err
		}
		v, err := c.Signal(args[0], pct)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s stability=%.3f shift=%+.3f trend=%s\n", v.Name, v.Stability, v.Shift, v.Trend)
		return nil
	},
}

var patternStrength float64

var patternCmd = &cobra.Command{
	Use:   "pattern <name> <signal-a> <signal-b>",
	Short: "Record a correlation between two signals as a pattern node",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		n, err := c.CorrelatePattern(args[0], args[1], args[2], patternStrength)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pattern %s links %s <-> %s stability=%.3f\n", n.Name, args[1], args[2], n.Stability)
		return nil
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict <signal>",
	Short: "Read a signal and its patterns as a prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		p, err := c.Predict(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s confidence=%.2f trend=%s stability=%.3f patterns=%d\n",
			p.Signal, p.Direction, p.Confidence, p.Trend, p.Stability, p.Patterns)
		return nil
	},
}

var (
	ghostsHistory bool
	ghostsLimit   int
)

var ghostsCmd = &cobra.Command{
	Use:   "ghosts",
	Short: "List ghosts of removed nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		ghosts, err := c.Ghosts(ghostsHistory, ghostsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ghosts)
		}
		if len(ghosts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No ghosts.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tARCHETYPE\tREASON\tROLE\tPATTERN\tPOTENTIAL\tDIED")
		for _, g := range ghosts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n", g.Name, g.Archetype, g.Reason,
				g.Role, g.Pattern, g.Potential, g.DiedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var snapshotsLimit int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List saved status snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		snaps, err := c.Snapshots(snapshotsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), snaps)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTAKEN\tNODES\tLINKS\tENTROPY\tCOHERENCE")
		for _, s := range snaps {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.3f\t%.3f\n", s.ID,
				time.UnixMilli(s.TakenAt).Format(time.RFC3339), s.NodeCount, s.LinkCount, s.Entropy, s.Coherence)
		}
		return tw.Flush()
	},
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current status as a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote()
		if err != nil {
			return err
		}
		id, err := c.SaveSnapshot()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved snapshot %d\n", id)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, stressCmd, predictCmd, ghostsCmd, snapshotsCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
	}

	stressCmd.Flags().Float64VarP(&stressIntensity, "intensity", "i", 0.5, "stress intensity in [0,1]")
	stressCmd.Flags().IntVarP(&stressCycles, "cycles", "n", 100, "stress cycles")
	recoverCmd.Flags().IntVarP(&recoverCycles, "cycles", "n", 10, "recovery cycles")
	recalibrateCmd.Flags().IntVarP(&recalibrateCycles, "cycles", "n", 50, "recalibration cycles")

	addCmd.Flags().Float64Var(&addStability, "stability", 0, "initial stability (default random)")
	addCmd.Flags().StringVar(&addKind, "kind", "", "node kind: anchor, consent, signal, dynamic, pattern")
	addCmd.Flags().StringVar(&addArchetype, "archetype", "", "behavioral archetype")

	patternCmd.Flags().Float64Var(&patternStrength, "strength", 0.5, "correlation strength in [0,1]")

	ghostsCmd.Flags().BoolVar(&ghostsHistory, "history", false, "list recorded ghosts from the database")
	ghostsCmd.Flags().IntVarP(&ghostsLimit, "limit", "n", 50, "maximum ghosts to list")

	snapshotsCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 20, "maximum snapshots to list")
	snapshotsCmd.AddCommand(snapshotSaveCmd)
}
