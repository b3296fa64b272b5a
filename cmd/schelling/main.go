// Command schelling runs the one-dimensional Schelling segregation model.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/schelling/internal/config"
	"github.com/talgya/schelling/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "schelling",
		Short: "Schelling segregation on a circular city",
		Long: `schelling places two groups of residents with individual tolerances on a
ring of tracts and relocates unhappy residents to empty tracts until nobody
wants to move.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("db", "", "SQLite file to record runs to")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newRunsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "schelling version %s\n", version)
			}
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// loadConfig resolves the effective configuration: defaults, the --config
// file, environment variables, then any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("db") {
		cfg.Run.DBPath, _ = flags.GetString("db")
	}
	if f := flags.Lookup("size"); f != nil && f.Changed {
		cfg.World.Size, _ = flags.GetInt("size")
	}
	if f := flags.Lookup("radius"); f != nil && f.Changed {
		cfg.World.NeighborRadius, _ = flags.GetInt("radius")
	}
	if f := flags.Lookup("occupancy"); f != nil && f.Changed {
		cfg.World.OccupancyProbability, _ = flags.GetFloat64("occupancy")
	}
	if f := flags.Lookup("max-tolerance"); f != nil && f.Changed {
		cfg.World.MaxTolerance, _ = flags.GetFloat64("max-tolerance")
	}
	if f := flags.Lookup("clustering"); f != nil && f.Changed {
		cfg.World.Clustering, _ = flags.GetFloat64("clustering")
	}
	if f := flags.Lookup("seed"); f != nil && f.Changed {
		cfg.Run.Seed, _ = flags.GetInt64("seed")
	}
	if f := flags.Lookup("max-moves"); f != nil && f.Changed {
		cfg.Engine.MaxMoves, _ = flags.GetInt("max-moves")
	}
	if f := flags.Lookup("max-idle"); f != nil && f.Changed {
		cfg.Engine.MaxIdleEvaluations, _ = flags.GetInt("max-idle")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addModelFlags registers the city and loop flags shared by run and sweep.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Int("size", 0, "Number of tracts on the ring")
	cmd.Flags().Int("radius", 0, "Neighbor radius on each side")
	cmd.Flags().Float64("occupancy", 0, "Probability a tract starts occupied")
	cmd.Flags().Float64("clustering", 0, "Initial identity clustering in [0,1]")
	cmd.Flags().Int64("seed", 0, "Random seed (0 = random)")
	cmd.Flags().Int("max-moves", 0, "Stop after this many moves (0 = unlimited)")
	cmd.Flags().Int("max-idle", 0, "Stop after this many consecutive evaluations without a move")
}

// newLogger builds the run logger and installs it as the slog default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := logging.NewLogger(cfg.Logging.Level, w)
	slog.SetDefault(logger)
	return logger
}
