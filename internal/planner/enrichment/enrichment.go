// Package enrichment optionally extends the deterministic planner
// output with an LLM's prose (PRD, per-focus plan narratives) and can
// rewrite failing scenarios during the orchestrator's fix_tests stage.
// Its absence never blocks a run: every caller degrades to the
// deterministic plan on ErrProviderUnavailable.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/proberun/probe/internal/domain"
)

// Provider is the enrichment seam the orchestrator depends on.
// Implementations wrap a specific LLM backend; see gemini.go and
// resty.go for the two families the pack's example repos favor.
type Provider interface {
	GeneratePRD(ctx context.Context, appMap *domain.AppMap) (string, error)
	GeneratePlanNarrative(ctx context.Context, focus string, appMap *domain.AppMap) (string, error)
	FixFailingScenarios(ctx context.Context, plan *domain.Plan, results map[string]*domain.ScenarioResult) (*domain.Plan, error)
}

// fixedScenario is the wire shape a provider's fix_tests response must
// validate against before it is merged back into the plan.
type fixedScenario struct {
	ID    string        `json:"id"`
	Steps []domain.Step `json:"steps"`
}

// fixSchema bounds what a fix_tests rewrite may contain: a list of
// {id, steps} pairs, each step one of the five known actions.
var fixSchemaJSON = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"scenarios": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string"},
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"action":      map[string]any{"type": "string", "enum": []any{"navigate", "fill", "click", "wait", "assert"}},
								"target":      map[string]any{"type": "string"},
								"value":       map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
							},
							"required": []any{"action", "target"},
						},
					},
				},
				"required": []any{"id", "steps"},
			},
		},
	},
	"required": []any{"scenarios"},
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fix_schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("fix_schema.json")
}

// validateFixPayload parses and schema-validates a provider's raw JSON
// fix_tests response, returning the typed scenario rewrites.
func validateFixPayload(raw string) ([]fixedScenario, error) {
	schema, err := compileSchema(fixSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: compile fix schema: %v", domain.ErrProviderUnavailable, err)
	}

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", domain.ErrProviderUnavailable, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: schema mismatch: %v", domain.ErrProviderUnavailable, err)
	}

	var payload struct {
		Scenarios []fixedScenario `json:"scenarios"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrProviderUnavailable, err)
	}
	return payload.Scenarios, nil
}

// applyFixes rewrites the steps of every scenario in plan that appears
// in fixes, by ID, leaving everything else untouched.
func applyFixes(plan *domain.Plan, fixes []fixedScenario) *domain.Plan {
	byID := make(map[string][]domain.Step, len(fixes))
	for _, f := range fixes {
		byID[f.ID] = f.Steps
	}

	for _, mp := range plan.Modules {
		for i := range mp.Scenarios {
			if steps, ok := byID[mp.Scenarios[i].ID]; ok {
				mp.Scenarios[i].Steps = steps
			}
		}
	}
	return plan
}

// failingScenarioIDs returns the IDs of every scenario result with a
// terminal failed status, the set a fix_tests rewrite should target.
func failingScenarioIDs(results map[string]*domain.ScenarioResult) []string {
	var ids []string
	for id, r := range results {
		if r.Status == domain.ScenarioFailed {
			ids = append(ids, id)
		}
	}
	return ids
}
