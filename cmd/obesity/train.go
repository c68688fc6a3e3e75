package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nggra/obesity/config"
	"github.com/nggra/obesity/pipeline"
	"github.com/nggra/obesity/pkg/log"
)

func trainCommand() *cobra.Command {
	var configFile string
	var quick bool
	overrides := config.Default()

	cmd := &cobra.Command{
		Use:   "train [--config file.yaml] [--data file.csv] [--out dir]",
		Short: "Cleans the data, searches the forest grid and saves the artifact bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configFile != "" {
				loaded, err := config.Load(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
				// the file may set the logger when the flags did not
				flags := cmd.Flags()
				if !flags.Changed("log-level") && !flags.Changed("log-format") {
					if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
						return err
					}
				}
			}
			applyOverrides(cmd, &cfg, overrides)
			if quick {
				cfg.Grid = config.QuickGrid()
			}

			res, err := pipeline.Train(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, res.Summary.String())
			fmt.Fprintf(out, "\nartifacts written to %s\n", cfg.OutputDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "YAML run configuration")
	f.StringVarP(&overrides.DataPath, "data", "i", overrides.DataPath, "training CSV file")
	f.StringVarP(&overrides.OutputDir, "out", "o", overrides.OutputDir, "artifact output directory")
	f.Uint64VarP(&overrides.Seed, "random-seed", "x", overrides.Seed, "random seed")
	f.Float64Var(&overrides.TestSize, "test-size", overrides.TestSize, "held-out fraction")
	f.IntVar(&overrides.CVFolds, "cv-folds", overrides.CVFolds, "cross validation folds")
	f.IntVarP(&overrides.Workers, "workers", "j", overrides.Workers, "parallel grid search workers, 0 for one per CPU")
	f.BoolVar(&overrides.Plots, "plots", overrides.Plots, "also write PNG charts")
	f.BoolVar(&quick, "quick", false, "search a two-point grid instead of the full one")
	return cmd
}

// applyOverrides copies every flag the user set explicitly onto cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config, o config.Config) {
	flags := cmd.Flags()
	set := map[string]func(){
		"data":        func() { cfg.DataPath = o.DataPath },
		"out":         func() { cfg.OutputDir = o.OutputDir },
		"random-seed": func() { cfg.Seed = o.Seed },
		"test-size":   func() { cfg.TestSize = o.TestSize },
		"cv-folds":    func() { cfg.CVFolds = o.CVFolds },
		"workers":     func() { cfg.Workers = o.Workers },
		"plots":       func() { cfg.Plots = o.Plots },
	}
	for name, apply := range set {
		if flags.Changed(name) {
			apply()
		}
	}
}
