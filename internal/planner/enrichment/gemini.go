package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/proberun/probe/internal/domain"
)

const geminiRequestTimeout = 60 * time.Second

// GeminiProvider enriches plans via Google's Gemini API. The
// deterministic plan remains the source of truth; this only adds
// prose narratives and, during fix_tests, rewrites failing steps.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider constructs a GeminiProvider. model defaults to
// "gemini-2.5-flash-lite" when empty.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", domain.ErrProviderUnavailable, err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, geminiRequestTimeout)
	defer cancel()

	var config *genai.GenerateContentConfig
	if systemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)}},
		}
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}}}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini (model %s): %v", domain.ErrProviderUnavailable, p.model, err)
	}
	return resp.Text(), nil
}

// GeneratePRD asks the model for a short product-requirements
// narrative summarizing the discovered application.
func (p *GeminiProvider) GeneratePRD(ctx context.Context, appMap *domain.AppMap) (string, error) {
	return p.generate(ctx, prdSystemInstruction, describeAppMap(appMap))
}

// GeneratePlanNarrative asks the model for a prose plan for one of the
// three parallel plan-stage focuses (frontend, backend, security).
func (p *GeminiProvider) GeneratePlanNarrative(ctx context.Context, focus string, appMap *domain.AppMap) (string, error) {
	return p.generate(ctx, planNarrativeSystemInstruction(focus), describeAppMap(appMap))
}

// FixFailingScenarios asks the model to rewrite the step sequences of
// every failing scenario, validates the response against the fix
// schema, and merges the valid rewrites into a copy of plan.
func (p *GeminiProvider) FixFailingScenarios(ctx context.Context, plan *domain.Plan, results map[string]*domain.ScenarioResult) (*domain.Plan, error) {
	ids := failingScenarioIDs(results)
	if len(ids) == 0 {
		return plan, nil
	}

	prompt, err := describeFailures(plan, results, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	raw, err := p.generate(ctx, fixTestsSystemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	fixes, err := validateFixPayload(raw)
	if err != nil {
		return nil, err
	}
	return applyFixes(plan, fixes), nil
}

const prdSystemInstruction = "You write a concise product requirements summary from a crawled web application's structure. Respond in plain prose, no markdown headers."

func planNarrativeSystemInstruction(focus string) string {
	return fmt.Sprintf("You write a short %s-focused test plan narrative given a crawled web application's structure. Respond in plain prose.", focus)
}

const fixTestsSystemInstruction = "You rewrite the step sequence of failing browser test scenarios given their failure messages. Respond ONLY with JSON matching {\"scenarios\":[{\"id\":string,\"steps\":[{\"action\":string,\"target\":string,\"value\":string,\"description\":string}]}]}. action must be one of navigate, fill, click, wait, assert."

func describeAppMap(appMap *domain.AppMap) string {
	b, _ := json.Marshal(appMap)
	return string(b)
}

func describeFailures(plan *domain.Plan, results map[string]*domain.ScenarioResult, ids []string) (string, error) {
	type failure struct {
		Scenario domain.Scenario      `json:"scenario"`
		Result   domain.ScenarioResult `json:"result"`
	}
	var failures []failure
	for _, sc := range plan.AllScenarios() {
		for _, id := range ids {
			if sc.ID == id {
				failures = append(failures, failure{Scenario: sc, Result: *results[id]})
			}
		}
	}
	b, err := json.Marshal(failures)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
