package main

import (
	"context"
	"fmt"

	"github.com/driftlab/conveyor/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Check a workflow definition without running it",
		Flags: []cli.Flag{
			workflowFlag(),
		},
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.String("workflow")

			def, err := workflow.LoadFile(path)
			if err != nil {
				return err
			}

			fmt.Printf("%s: valid (%d steps)\n", path, len(def.Steps))

			return nil
		},
	}
}
