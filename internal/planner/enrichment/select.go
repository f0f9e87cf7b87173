package enrichment

import (
	"context"
	"fmt"
	"os"
)

// FromEnvironment builds a Provider from whichever of
// GOOGLE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY is set, preferring
// Gemini, then OpenAI, then Anthropic when more than one is present.
// A nil Provider and nil error together mean: no enrichment
// configured, run deterministically.
func FromEnvironment(ctx context.Context) (Provider, error) {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		p, err := NewGeminiProvider(ctx, key, os.Getenv("PROBE_GEMINI_MODEL"))
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return p, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewRESTProvider(BackendOpenAI, key, os.Getenv("PROBE_OPENAI_BASE_URL"), os.Getenv("PROBE_OPENAI_MODEL")), nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return NewRESTProvider(BackendAnthropic, key, os.Getenv("PROBE_ANTHROPIC_BASE_URL"), os.Getenv("PROBE_ANTHROPIC_MODEL")), nil
	}
	return nil, nil
}
