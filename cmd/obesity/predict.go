package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/inference"
	"github.com/nggra/obesity/pkg/errors"
)

// fieldFlags maps predict flags to schema columns.
var fieldFlags = []struct {
	flag, column, usage string
}{
	{"age", "Age", "age in years"},
	{"height", "Height", "height in metres"},
	{"weight", "Weight", "weight in kilograms"},
	{"fcvc", "FCVC", "vegetable consumption frequency, 1 to 3"},
	{"ncp", "NCP", "main meals per day, 1 to 4"},
	{"ch2o", "CH2O", "daily water intake, 1 to 3"},
	{"faf", "FAF", "physical activity frequency, 0 to 3"},
	{"tue", "TUE", "technology use time, 0 to 3"},
	{"gender", "Gender", "Female or Male"},
	{"family-history", "family_history_with_overweight", "family history with overweight, Yes or No"},
	{"favc", "FAVC", "frequent high calorie food, Yes or No"},
	{"caec", "CAEC", "eating between meals: No, Sometimes, Frequently or Always"},
	{"smoke", "SMOKE", "smoker, Yes or No"},
	{"scc", "SCC", "calorie monitoring, Yes or No"},
	{"calc", "CALC", "alcohol: No, Sometimes, Frequently or Always"},
	{"mtrans", "MTRANS", "transport: Automobile, Motorbike, Public_Transportation or Walking"},
}

func predictCommand() *cobra.Command {
	var artifactDir string
	var recordFile string
	var detail bool
	values := make([]string, len(fieldFlags))

	cmd := &cobra.Command{
		Use:   "predict --artifacts dir [--record file.yaml] [--age 24 ...]",
		Short: "Predicts the obesity level of one person from the saved artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := map[string]string{}
			if recordFile != "" {
				if err := readRecordFile(recordFile, raw); err != nil {
					return err
				}
			}
			for i, f := range fieldFlags {
				if cmd.Flags().Changed(f.flag) {
					raw[f.column] = values[i]
				}
			}
			rec, err := inference.ParseRecord(raw)
			if err != nil {
				return err
			}

			predictor, err := inference.Load(artifactDir)
			if err != nil {
				return err
			}
			pred, err := predictor.PredictDetailed(rec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pred.Label)
			if detail {
				printProbabilities(out, pred)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&artifactDir, "artifacts", "a", "artifacts", "directory holding the artifact bundle")
	f.StringVarP(&recordFile, "record", "r", "", "YAML file with one record, keyed by column name")
	f.BoolVar(&detail, "detail", false, "also print class probabilities")
	for i, field := range fieldFlags {
		f.StringVar(&values[i], field.flag, "", field.usage)
	}
	return cmd
}

// readRecordFile merges a YAML mapping of column names to scalars into raw.
func readRecordFile(path string, raw map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read record file %s", path)
	}
	var fileValues map[string]string
	if err := yaml.Unmarshal(data, &fileValues); err != nil {
		return errors.Wrapf(err, "failed to parse record file %s", path)
	}
	for k, v := range fileValues {
		raw[k] = v
	}
	return nil
}

func printProbabilities(w io.Writer, pred *inference.Prediction) {
	labels := make([]string, 0, len(pred.Probabilities))
	for l := range pred.Probabilities {
		labels = append(labels, l)
	}
	// descending probability, label table order on ties
	order := make(map[string]int, len(dataset.Labels))
	for i, l := range dataset.Labels {
		order[l] = i
	}
	sort.Slice(labels, func(i, j int) bool {
		pi, pj := pred.Probabilities[labels[i]], pred.Probabilities[labels[j]]
		if pi != pj {
			return pi > pj
		}
		return order[labels[i]] < order[labels[j]]
	})
	for _, l := range labels {
		fmt.Fprintf(w, "  %-20s %.3f\n", l, pred.Probabilities[l])
	}
}
