// Command macros prepares macro training data, fine-tunes a chat model on it
// and generates macros with the result.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ellypaws/macrotune/pkg/config"
	"github.com/ellypaws/macrotune/pkg/logger"
)

var log = logger.New("macros")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}

// app carries the loaded configuration to every subcommand.
type app struct {
	configPath string
	logLevel   string
	config     *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "macros",
		Short:         "Build macro training data, fine-tune a model and generate macros",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				c.LogLevel = a.logLevel
			}
			log.SetLevel(logger.Level(c.LogLevel))
			a.config = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $MACROTUNE_CONFIG or "+config.DefaultFile+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		a.extractCommand(),
		a.expandCommand(),
		a.materializeCommand(),
		a.prepareCommand(),
		a.validateTrainingCommand(),
		a.finetuneCommand(),
		a.resumeCommand(),
		a.jobsCommand(),
		a.generateCommand(),
		a.schemaCommand(),
	)
	return root
}

// override replaces *dst with the flag value when the flag was given.
func override[T any](cmd *cobra.Command, name string, dst *T, value T) {
	if cmd.Flags().Changed(name) {
		*dst = value
	}
}
