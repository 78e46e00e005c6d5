package main

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/ellypaws/macrotune/pkg/dataset"
)

func (a *app) prepareCommand() *cobra.Command {
	var dir, prefix, output string
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build the chat fine-tuning JSONL file from generated macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "dir", &a.config.TrainingDir, dir)
			override(cmd, "prefix", &a.config.TrainingPrefix, prefix)
			override(cmd, "output", &a.config.TrainingPath, output)

			report, err := dataset.BuildFile(cmd.Context(), a.config.TrainingDir, a.config.TrainingPrefix, a.config.TrainingPath, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d training examples to %s, skipped %d\n", report.Written, a.config.TrainingPath, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of macros to read")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only read files whose name starts with this")
	cmd.Flags().StringVar(&output, "output", "", "JSONL file to write")
	return cmd
}

func (a *app) validateTrainingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-training [file]",
		Short: "Check a training file line by line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.config.TrainingPath
			if len(args) == 1 {
				path = args[0]
			}

			result := dataset.ValidateFile(path)
			if !result.OK {
				return errors.New(result.Message())
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message())
			return nil
		},
	}
}
