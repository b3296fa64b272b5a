package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/schelling/internal/engine"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the model across a range of max tolerance values",
		Long: `sweep runs one simulation per max tolerance value from --from to --to in
steps of --step. Every run uses the same seed, so runs differ only in how
demanding residents are.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			from, _ := cmd.Flags().GetFloat64("from")
			to, _ := cmd.Flags().GetFloat64("to")
			step, _ := cmd.Flags().GetFloat64("step")
			tolerances, err := engine.ToleranceRange(from, to, step)
			if err != nil {
				return err
			}

			points, err := engine.Sweep(cfg.World, cfg.Run.Seed, tolerances, cfg.Engine, logger)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(points)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MAX_TOL\tOUTCOME\tMOVES\tHOMOGENEITY_BEFORE\tHOMOGENEITY_AFTER\tUNHAPPY")
			for _, p := range points {
				fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\t%s\t%d\n",
					p.MaxTolerance, p.Outcome, humanize.Comma(int64(p.Moves)),
					engine.FormatStat(p.Initial.MeanHomogeneity), engine.FormatStat(p.Final.MeanHomogeneity),
					p.Final.Unhappy)
			}
			return tw.Flush()
		},
	}
	addModelFlags(cmd)
	cmd.Flags().Float64("from", 0.1, "First max tolerance")
	cmd.Flags().Float64("to", 0.7, "Last max tolerance")
	cmd.Flags().Float64("step", 0.1, "Max tolerance increment")
	return cmd
}
