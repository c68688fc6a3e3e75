// Command obesity trains the obesity level classifier and serves single
// predictions from the saved artifacts.
//
//	obesity train --data ObesityDataSet.csv --out artifacts
//	obesity predict --artifacts artifacts --record person.yaml
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nggra/obesity/pkg/log"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "obesity",
		Short:         "Train and query the obesity level classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(opts.logLevel, opts.logFormat)
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "logging level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", log.FormatPretty, "logging format: pretty or json")

	root.AddCommand(trainCommand())
	root.AddCommand(predictCommand())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
