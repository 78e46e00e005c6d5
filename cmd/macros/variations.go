package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ellypaws/macrotune/pkg/variation"
)

func (a *app) extractCommand() *cobra.Command {
	var source, output string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Write the prompt of every source macro and its three variations to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "source", &a.config.SourceDir, source)
			override(cmd, "output", &a.config.VariationsCSV, output)

			rows, err := variation.Extract(cmd.Context(), a.config.SourceDir, log)
			if err != nil {
				return err
			}
			err = variation.WriteFile(a.config.VariationsCSV, func(w io.Writer) error {
				return variation.WriteVariations(w, rows)
			})
			if err != nil {
				return err
			}
			log.Infof("Wrote %d prompts with variations to %s", len(rows), a.config.VariationsCSV)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "directory of source macros")
	cmd.Flags().StringVar(&output, "output", "", "variations CSV to write")
	return cmd
}

func (a *app) expandCommand() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Flatten the variations CSV into one row per prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "input", &a.config.VariationsCSV, input)
			override(cmd, "output", &a.config.PromptsCSV, output)

			rows, err := variation.ReadFile(a.config.VariationsCSV, variation.ReadVariations)
			if err != nil {
				return err
			}
			expanded := variation.Expand(rows)
			err = variation.WriteFile(a.config.PromptsCSV, func(w io.Writer) error {
				return variation.WriteRows(w, expanded)
			})
			if err != nil {
				return err
			}
			log.Infof("Wrote %d prompts to %s", len(expanded), a.config.PromptsCSV)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "variations CSV to read")
	cmd.Flags().StringVar(&output, "output", "", "prompts CSV to write")
	return cmd
}

func (a *app) materializeCommand() *cobra.Command {
	var input, source, output string
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Write one macro file per prompt, copied from its source with the prompt replaced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "input", &a.config.PromptsCSV, input)
			override(cmd, "source", &a.config.SourceDir, source)
			override(cmd, "output", &a.config.GenDir, output)

			rows, err := variation.ReadFile(a.config.PromptsCSV, variation.ReadRows)
			if err != nil {
				return err
			}
			report, err := variation.Materializer{Log: log}.Materialize(cmd.Context(), rows, a.config.SourceDir, a.config.GenDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d macro files in %s, skipped %d\n", len(report.Written), a.config.GenDir, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "prompts CSV to read")
	cmd.Flags().StringVar(&source, "source", "", "directory of source macros")
	cmd.Flags().StringVar(&output, "output", "", "directory to write macros to")
	return cmd
}
