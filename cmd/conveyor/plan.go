package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/log"
	"github.com/driftlab/conveyor/pkg/plan"
	"github.com/driftlab/conveyor/pkg/scheduler"
	"github.com/driftlab/conveyor/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func planCommand() *cli.Command {
	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"p"},
		Usage:   "Show the execution plan for a workflow definition",
		Flags: []cli.Flag{
			workflowFlag(),
			logLevelFlag(),
		},
		Action: func(_ context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			def, err := workflow.LoadFile(command.String("workflow"))
			if err != nil {
				return err
			}

			executionPlan, err := plan.Build(def)
			if err != nil {
				return err
			}

			fmt.Printf("Workflow: %s (%d steps, max parallel %d)\n\n", def.ID, executionPlan.TotalSteps, def.MaxParallel())

			for i, level := range executionPlan.Levels {
				fmt.Printf("Level %d: %s\n", i, strings.Join(level, ", "))
			}

			sched := scheduler.New(executionPlan, def.MaxParallel(), expression.NewExprEngine(), log.WithModule("plan"))

			fmt.Printf("\nCritical path: %s\n", strings.Join(sched.CriticalPath(), " -> "))

			return nil
		},
	}
}
