package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	pkgcmd "github.com/driftlab/conveyor/pkg/cmd"
	"github.com/driftlab/conveyor/pkg/executor"
	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/log"
	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute a workflow to completion",
		Flags: []cli.Flag{
			workflowFlag(),
			logLevelFlag(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Run input as a JSON object",
				Value:   "{}",
			},
			&cli.IntFlag{
				Name:    "max-parallel",
				Usage:   "Override the workflow's parallelism cap",
				Sources: cli.EnvVars("CONVEYOR_MAX_PARALLEL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("conveyor")

			def, err := workflow.LoadFile(command.String("workflow"))
			if err != nil {
				return err
			}

			var input map[string]any
			if err := json.Unmarshal([]byte(command.String("input")), &input); err != nil {
				return fmt.Errorf("invalid --input, want a JSON object: %w", err)
			}

			if override := command.Int("max-parallel"); override > 0 {
				def.MaxParallelSteps = override
			}

			bus, err := pkgcmd.NewEventBus(command.String("event-bus"), "conveyor", logger)
			if err != nil {
				return err
			}

			engine := expression.NewExprEngine()
			runner := workflow.NewRunner(pkgcmd.NewRegistry(logger, engine), logger)

			opts := []executor.Option{
				executor.WithProgress(func(completed, total int) {
					logger.Info("Run progress", "completed", completed, "total", total)
				}),
			}

			if bus != nil {
				opts = append(opts, executor.WithEventBus(bus))

				defer func() {
					if err := bus.Close(); err != nil {
						logger.Error("Failed to close event bus", "error", err)
					}
				}()
			}

			execCtx := models.NewExecutionContext(def.ID, input)
			defer runner.Release(execCtx.ID)

			logger.InfoContext(ctx, "Starting workflow run",
				"workflow_id", def.ID, "run_id", execCtx.ID, "steps", len(def.Steps))

			result := executor.New(engine, logger, opts...).Execute(ctx, def, execCtx, runner.StepExecutor())
			if result.Err != nil {
				return result.Err
			}

			printStepStatuses(def, result)

			logger.InfoContext(ctx, "Workflow run finished",
				"run_id", execCtx.ID,
				"success", result.Success,
				"completed", result.Stats.CompletedSteps,
				"failed", result.Stats.FailedSteps,
				"skipped", result.Stats.SkippedSteps,
				"retries", result.Stats.TotalRetries,
				"duration", result.Stats.Duration)

			if !result.Success {
				return cli.Exit("workflow run failed", 1)
			}

			return nil
		},
	}
}

// printStepStatuses writes one line per step in declaration order.
func printStepStatuses(def *models.WorkflowDefinition, result executor.Result) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "STEP\tSTATUS\tRETRIES")

	for _, step := range def.Steps {
		exec, ok := result.Executions[step.ID]
		if !ok {
			continue
		}

		fmt.Fprintf(writer, "%s\t%s\t%d\n", step.ID, exec.Status, exec.Retries)
	}

	_ = writer.Flush()
}
