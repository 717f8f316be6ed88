package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "conveyor",
		Usage:                 "Run and inspect maintenance workflow pipelines",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			planCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func workflowFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "workflow",
		Aliases:  []string{"w"},
		Usage:    "Path to the workflow definition file (.json, .yaml or .yml)",
		Required: true,
		Sources:  cli.EnvVars("CONVEYOR_WORKFLOW"),
	}
}

func logLevelFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LOG_LEVEL"),
	}
}
