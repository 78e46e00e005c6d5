package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ellypaws/macrotune/pkg/db"
	"github.com/ellypaws/macrotune/pkg/finetune"
)

type monitorFlags struct {
	interval    int
	maxAttempts int
	deadline    time.Duration
	tui         bool
}

func (f *monitorFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.interval, "interval", 0, "seconds between status checks")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "stop monitoring after this many status checks (0 means no limit)")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0, "stop monitoring after this long (0 means no limit)")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show progress in an interactive terminal view")
}

func (f *monitorFlags) apply(cmd *cobra.Command, a *app) {
	override(cmd, "interval", &a.config.PollIntervalSeconds, f.interval)
	override(cmd, "max-attempts", &a.config.MaxPollAttempts, f.maxAttempts)
	override(cmd, "deadline", &a.config.PollDeadline, f.deadline)
}

type driveFunc func(ctx context.Context, d *finetune.Driver) (finetune.Outcome, error)

func (a *app) finetuneCommand() *cobra.Command {
	var (
		flags    monitorFlags
		model    string
		training string
	)
	cmd := &cobra.Command{
		Use:   "finetune",
		Short: "Validate and upload the training file, then create and monitor a fine-tuning job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd, "model", &a.config.Model, model)
			override(cmd, "training", &a.config.TrainingPath, training)
			flags.apply(cmd, a)

			if strings.HasPrefix(a.config.Model, "gpt-4") {
				log.Infof("Note: GPT-4 fine-tuning might take longer and cost more than GPT-3.5")
			}
			return a.drive(cmd, flags.tui, "Fine-tuning "+a.config.Model, func(ctx context.Context, d *finetune.Driver) (finetune.Outcome, error) {
				return d.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "base model to fine-tune")
	cmd.Flags().StringVar(&training, "training", "", "training JSONL file")
	flags.register(cmd)
	return cmd
}

func (a *app) resumeCommand() *cobra.Command {
	var flags monitorFlags
	cmd := &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Monitor a fine-tuning job created by an earlier run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd, a)
			jobID := args[0]
			return a.drive(cmd, flags.tui, "Resuming "+jobID, func(ctx context.Context, d *finetune.Driver) (finetune.Outcome, error) {
				return d.Resume(ctx, jobID)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// drive builds a driver that records into the job ledger and runs it either
// with plain logging or under the terminal monitor.
func (a *app) drive(cmd *cobra.Command, tui bool, title string, run driveFunc) error {
	ctx := cmd.Context()

	client, err := a.config.Client()
	if err != nil {
		return err
	}

	database, err := db.New(ctx, a.config.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	config := a.config.FineTune()
	opts := []finetune.Option{finetune.WithRecorder(database)}

	var outcome finetune.Outcome
	if tui {
		outcome, err = runMonitor(ctx, title, func(ctx context.Context, observer finetune.Observer) (finetune.Outcome, error) {
			return run(ctx, finetune.New(client, config, append(opts, finetune.WithObserver(observer))...))
		})
	} else {
		log.Infof("Note: fine-tuning typically takes several hours to complete")
		outcome, err = run(ctx, finetune.New(client, config, append(opts, finetune.WithLogger(log))...))
	}
	report(cmd.OutOrStdout(), outcome, config.ModelOutputPath)

	if errors.Is(err, finetune.ErrAbandoned) && outcome.JobID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Resume monitoring with: macros resume %s\n", outcome.JobID)
	}
	return err
}

func report(w io.Writer, outcome finetune.Outcome, modelPath string) {
	rule := strings.Repeat("=", 50)
	switch outcome.State {
	case finetune.StateSucceeded:
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, "🎉 Fine-tuning completed successfully!")
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Your fine-tuned model name: %s\n", outcome.FineTunedModel)
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "\nModel name saved to: %s\n", modelPath)
		fmt.Fprintln(w, "Use this model name with `macros generate` to generate macros")
	case finetune.StateFailed:
		fmt.Fprintln(w, "\nFine-tuning failed!")
		if err := outcome.Job.Failure(); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}

func (a *app) jobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List fine-tuning jobs recorded by earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.New(cmd.Context(), a.config.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			jobs, err := database.AllJobs()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No fine-tuning jobs recorded yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobsTable(jobs))
			return nil
		},
	}
}

func jobsTable(jobs []db.Job) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6f9cbd")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("JOB", "STATUS", "MODEL", "FINE-TUNED MODEL", "TOKENS", "UPDATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 1 && row >= 0 && row < len(jobs) {
				return cell.Foreground(statusColor(jobs[row].Status))
			}
			return cell
		})

	for _, job := range jobs {
		tokens := ""
		if job.TrainedTokens != nil {
			tokens = strconv.FormatInt(*job.TrainedTokens, 10)
		}
		t.Row(job.JobID, job.Status, job.Model, job.FineTunedModel, tokens, job.UpdatedAt.Local().Format(time.DateTime))
	}
	return t.String()
}
