package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/schelling/internal/engine"
	"github.com/talgya/schelling/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a city and relocate residents until it settles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			run, err := engine.Execute(cfg.World, cfg.Run.Seed, cfg.Engine, logger)
			if err != nil {
				return err
			}

			var runID string
			if cfg.Run.DBPath != "" {
				db, err := persistence.Open(cfg.Run.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()

				rec, err := db.RecordRun(run)
				if err != nil {
					return err
				}
				runID = rec.ID
			}

			showLayout, _ := cmd.Flags().GetBool("layout")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := writeRunJSON(cmd.OutOrStdout(), run, runID); err != nil {
					return err
				}
			} else {
				writeRunSummary(cmd.OutOrStdout(), run, runID, showLayout)
			}

			failOnStall, _ := cmd.Flags().GetBool("fail-on-stall")
			if failOnStall {
				return run.Result.Err()
			}
			return nil
		},
	}
	addModelFlags(cmd)
	cmd.Flags().Float64("max-tolerance", 0, "Upper bound of resident tolerance")
	cmd.Flags().Bool("layout", false, "Print the final ring layout")
	cmd.Flags().Bool("fail-on-stall", false, "Exit non-zero unless the city settles")
	return cmd
}

func writeRunSummary(w io.Writer, run *engine.Run, runID string, showLayout bool) {
	fmt.Fprintf(w, "seed:      %d\n", run.Seed)
	fmt.Fprintf(w, "city:      %s tracts, radius %d\n",
		humanize.Comma(int64(run.Config.Size)), run.Config.NeighborRadius)
	fmt.Fprintf(w, "outcome:   %s after %s moves (%s evaluations)\n",
		run.Result.Outcome,
		humanize.Comma(int64(run.Result.Moves)),
		humanize.Comma(int64(run.Result.Evaluations)))
	fmt.Fprintf(w, "before:    %s\n", run.Initial)
	fmt.Fprintf(w, "after:     %s\n", run.Final)
	if runID != "" {
		fmt.Fprintf(w, "recorded:  %s\n", runID)
	}
	if showLayout {
		fmt.Fprintf(w, "layout:    %s\n", run.Sim.City.Layout())
	}
	if err := run.Result.Err(); err != nil {
		fmt.Fprintf(w, "warning:   %v\n", err)
	}
}

func writeRunJSON(w io.Writer, run *engine.Run, runID string) error {
	out := map[string]any{
		"seed":     run.Seed,
		"config":   run.Config,
		"outcome":  run.Result.Outcome.String(),
		"moves":    run.Result.Moves,
		"skips":    run.Result.Skips,
		"capped":   run.Result.Capped,
		"initial":  run.Initial,
		"final":    run.Final,
		"move_log": run.Sim.MoveLog(),
	}
	if runID != "" {
		out["run_id"] = runID
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
