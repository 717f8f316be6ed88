package cmd

import (
	"log/slog"

	"github.com/driftlab/conveyor/pkg/expression"
	"github.com/driftlab/conveyor/pkg/registry"
	logworker "github.com/driftlab/conveyor/pkg/workers/log"
	"github.com/driftlab/conveyor/pkg/workers/transform"
)

// NewRegistry creates a worker registry with the built-in workers registered.
func NewRegistry(logger *slog.Logger, engine expression.Engine) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.Register(logworker.NewFactory())
	reg.Register(transform.NewFactory(engine))

	return reg
}
