package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/proberun/probe/internal/domain"
)

const restyRequestTimeout = 60 * time.Second

// chatBackend distinguishes the two REST wire shapes RESTProvider
// supports; both OpenAI and Anthropic expose a chat-completions-style
// endpoint but disagree on request/response envelope.
type chatBackend int

const (
	// BackendOpenAI targets the OpenAI-compatible chat completions API.
	BackendOpenAI chatBackend = iota
	// BackendAnthropic targets Anthropic's messages API.
	BackendAnthropic
)

// RESTProvider enriches plans via a plain REST chat-completion
// endpoint, covering OpenAI and Anthropic-shaped APIs without either
// vendor's SDK.
type RESTProvider struct {
	client  *resty.Client
	backend chatBackend
	baseURL string
	model   string
	apiKey  string
}

// NewRESTProvider constructs a RESTProvider. baseURL and model fall
// back to sensible per-backend defaults when empty.
func NewRESTProvider(backend chatBackend, apiKey, baseURL, model string) *RESTProvider {
	switch backend {
	case BackendAnthropic:
		if baseURL == "" {
			baseURL = "https://api.anthropic.com/v1/messages"
		}
		if model == "" {
			model = "claude-3-5-haiku-latest"
		}
	default:
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1/chat/completions"
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
	}
	return &RESTProvider{
		client:  resty.New().SetTimeout(restyRequestTimeout),
		backend: backend,
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
	}
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

type anthropicRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []openAIMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (p *RESTProvider) generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	req := p.client.R().SetContext(ctx)

	switch p.backend {
	case BackendAnthropic:
		req.SetHeader("x-api-key", p.apiKey).
			SetHeader("anthropic-version", "2023-06-01").
			SetHeader("content-type", "application/json").
			SetBody(anthropicRequest{
				Model:     p.model,
				MaxTokens: 2048,
				System:    systemInstruction,
				Messages:  []openAIMessage{{Role: "user", Content: prompt}},
			})
	default:
		messages := []openAIMessage{}
		if systemInstruction != "" {
			messages = append(messages, openAIMessage{Role: "system", Content: systemInstruction})
		}
		messages = append(messages, openAIMessage{Role: "user", Content: prompt})
		req.SetHeader("Authorization", "Bearer "+p.apiKey).
			SetHeader("content-type", "application/json").
			SetBody(openAIRequest{Model: p.model, Messages: messages})
	}

	resp, err := req.Post(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode(), resp.String())
	}

	switch p.backend {
	case BackendAnthropic:
		var parsed anthropicResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return "", fmt.Errorf("%w: decode anthropic response: %v", domain.ErrProviderUnavailable, err)
		}
		if len(parsed.Content) == 0 {
			return "", fmt.Errorf("%w: empty anthropic response", domain.ErrProviderUnavailable)
		}
		return parsed.Content[0].Text, nil
	default:
		var parsed openAIResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return "", fmt.Errorf("%w: decode openai response: %v", domain.ErrProviderUnavailable, err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("%w: empty openai response", domain.ErrProviderUnavailable)
		}
		return parsed.Choices[0].Message.Content, nil
	}
}

// GeneratePRD asks the model for a short product-requirements
// narrative summarizing the discovered application.
func (p *RESTProvider) GeneratePRD(ctx context.Context, appMap *domain.AppMap) (string, error) {
	return p.generate(ctx, prdSystemInstruction, describeAppMap(appMap))
}

// GeneratePlanNarrative asks the model for a prose plan for one of the
// three parallel plan-stage focuses (frontend, backend, security).
func (p *RESTProvider) GeneratePlanNarrative(ctx context.Context, focus string, appMap *domain.AppMap) (string, error) {
	return p.generate(ctx, planNarrativeSystemInstruction(focus), describeAppMap(appMap))
}

// FixFailingScenarios asks the model to rewrite the step sequences of
// every failing scenario, validates the response against the fix
// schema, and merges the valid rewrites into a copy of plan.
func (p *RESTProvider) FixFailingScenarios(ctx context.Context, plan *domain.Plan, results map[string]*domain.ScenarioResult) (*domain.Plan, error) {
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
