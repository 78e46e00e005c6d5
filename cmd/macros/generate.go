package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/ellypaws/macrotune/pkg/cache"
	"github.com/ellypaws/macrotune/pkg/generate"
	"github.com/ellypaws/macrotune/pkg/macro"
	"github.com/ellypaws/macrotune/pkg/schema"
)

var errInvalidMacro = errors.New("macro does not match the schema")

// samplePrompts are sent when generate is called without arguments.
var samplePrompts = []string{
	"create a table with data for ten countries, population, GDP, area",
	"show planets of solar system in a pie chart",
	"display mountain heights in a bar chart",
}

func (a *app) generateCommand() *cobra.Command {
	var (
		model      string
		system     string
		noCache    bool
		validate   bool
		stream     bool
		checkModel bool
	)
	cmd := &cobra.Command{
		Use:   "generate [prompts...]",
		Short: "Ask the fine-tuned model for a macro per prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			override(cmd, "model", &a.config.FineTunedModel, model)
			override(cmd, "system", &a.config.SystemPrompt, system)

			client, err := a.config.Client()
			if err != nil {
				return err
			}
			name, err := a.config.ModelName()
			if err != nil {
				return err
			}

			if checkModel {
				if err := generate.CheckModel(ctx, client, name); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			g := &generate.Generator{
				Client: client,
				Model:  name,
				System: a.config.SystemPrompt,
				Log:    log,
			}
			if stream {
				g.Stream = func(chunk string) { fmt.Fprint(out, chunk) }
			}
			if !noCache {
				g.Cache = cache.Select(ctx, a.config.RedisURL, log)
			}
			if validate {
				g.Validator, err = schema.Load(a.config.SchemaPath)
				if err != nil {
					return err
				}
			}

			prompts := args
			if len(prompts) == 0 {
				prompts = samplePrompts
			}

			var failed int
			for _, prompt := range prompts {
				fmt.Fprintln(out, "\nPrompt:", prompt)
				fmt.Fprintln(out, strings.Repeat("-", 50))

				result, err := g.Macro(ctx, prompt)
				switch {
				case err != nil:
					if stream {
						fmt.Fprintln(out)
					}
					if ctx.Err() != nil {
						return err
					}
					failed++
				case stream && !result.Cached:
					// the reply is already on screen
					fmt.Fprintln(out)
					if result.Validated && !result.Valid {
						fmt.Fprintf(out, "Macro is invalid: %s\n", result.Problem)
					}
				default:
					pretty, err := macro.Document(result.Raw).Pretty()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, pretty)
					if result.Validated && !result.Valid {
						fmt.Fprintf(out, "Macro is invalid: %s\n", result.Problem)
					}
				}
				fmt.Fprintln(out, strings.Repeat("=", 50))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d prompts failed", failed, len(prompts))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "fine-tuned model (default: the one saved by finetune)")
	cmd.Flags().StringVar(&system, "system", "", "system message sent before each prompt")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "always ask the model")
	cmd.Flags().BoolVar(&validate, "validate", false, "check each macro against the schema")
	cmd.Flags().BoolVar(&stream, "stream", false, "print replies as they are written")
	cmd.Flags().BoolVar(&checkModel, "check-model", true, "make sure the model is listed before sending prompts")
	return cmd
}

func (a *app) schemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer a JSON Schema from macros or validate a macro against it",
	}
	cmd.AddCommand(a.schemaInferCommand(), a.schemaValidateCommand())
	return cmd
}

func (a *app) schemaInferCommand() *cobra.Command {
	var dir, output string
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer a schema from every macro in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "dir", &a.config.SchemaDir, dir)
			override(cmd, "output", &a.config.SchemaPath, output)

			exclude := []string{schema.DefaultFile, filepath.Base(a.config.SchemaPath)}
			document, report, err := schema.InferDir(cmd.Context(), a.config.SchemaDir, exclude, log)
			if err != nil {
				return err
			}
			if err := schema.WriteFile(a.config.SchemaPath, document); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Schema generated successfully!")
			fmt.Fprintf(out, "Total files processed: %d\n", report.Processed)
			if report.Skipped > 0 {
				fmt.Fprintf(out, "Files skipped: %d\n", report.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of macros")
	cmd.Flags().StringVar(&output, "output", "", "schema file to write")
	return cmd
}

func (a *app) schemaValidateCommand() *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a macro file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "schema", &a.config.SchemaPath, schemaPath)

			validator, err := schema.Load(a.config.SchemaPath)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no schema at %s, run `macros schema infer` first: %w", a.config.SchemaPath, err)
			}
			if err != nil {
				return err
			}

			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if valid, problem := validator.ValidateBytes(b); !valid {
				fmt.Fprintf(cmd.OutOrStdout(), "Macro is invalid: %s\n", problem)
				return errInvalidMacro
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Macro is valid!")
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file")
	return cmd
}
