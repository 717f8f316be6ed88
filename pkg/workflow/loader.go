// Package workflow loads workflow definitions from disk and binds them to
// registered step workers for execution.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftlab/conveyor/pkg/models"
	"github.com/driftlab/conveyor/pkg/plan"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// definitionSchema is the shape check applied before struct decoding, so a
// malformed file fails with a field-level message instead of a zero-valued
// definition.
var definitionSchema = map[string]any{
	"type":     "object",
	"required": []string{"id", "name", "steps"},
	"properties": map[string]any{
		"id":   map[string]any{"type": "string", "minLength": 1},
		"type": map[string]any{"type": "string"},
		"name": map[string]any{"type": "string", "minLength": 1},
		"max_parallel_steps": map[string]any{
			"type":    "integer",
			"minimum": 0,
		},
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []string{"id", "agent_id"},
				"properties": map[string]any{
					"id":         map[string]any{"type": "string", "pattern": "^[a-zA-Z0-9_-]+$"},
					"agent_id":   map[string]any{"type": "string", "minLength": 1},
					"depends_on": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"priority":   map[string]any{"type": "integer"},
					"condition":  map[string]any{"type": "string"},
					"retry": map[string]any{
						"type":     "object",
						"required": []string{"max_attempts"},
						"properties": map[string]any{
							"max_attempts":       map[string]any{"type": "integer", "minimum": 1},
							"initial_delay_ms":   map[string]any{"type": "integer", "minimum": 0},
							"backoff_multiplier": map[string]any{"type": "number", "minimum": 0},
							"max_delay_ms":       map[string]any{"type": "integer", "minimum": 0},
						},
					},
					"configuration": map[string]any{"type": "object"},
				},
			},
		},
		"metadata": map[string]any{"type": "object"},
	},
}

// LoadFile reads a workflow definition from a JSON or YAML file and
// validates it, including a full dependency graph check.
func LoadFile(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
		return Load(data, FormatJSON)
	case ".yaml", ".yml":
		return Load(data, FormatYAML)
	default:
		return nil, fmt.Errorf("unsupported workflow file extension %q, want .json, .yaml or .yml", ext)
	}
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Load parses and validates a workflow definition from raw bytes.
func Load(data []byte, format Format) (*models.WorkflowDefinition, error) {
	var (
		raw map[string]any
		def models.WorkflowDefinition
	)

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
		}

		if err := checkShape(raw); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
		}

		if err := checkShape(raw); err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", format)
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate checks a definition beyond its shape: struct-level constraints
// and the dependency graph (duplicates, dangling references, cycles).
func Validate(def *models.WorkflowDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	if _, err := plan.Build(def); err != nil {
		return fmt.Errorf("invalid workflow graph: %w", err)
	}

	return nil
}

func checkShape(raw map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(definitionSchema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate workflow shape: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid workflow definition: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
