package gate

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitCompleter implements Completer on a Genkit model. The model name is
// whatever the configured provider plugin registered (e.g.
// "googleai/gemini-2.5-flash").
type GenkitCompleter struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
	maxTokens   int
}

// NewGenkitCompleter creates a completer for the named model.
func NewGenkitCompleter(g *genkit.Genkit, modelName string, temperature float64, maxTokens int) *GenkitCompleter {
	return &GenkitCompleter{
		g:           g,
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete runs a single generation and returns the response text.
func (c *GenkitCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(userPrompt),
		ai.WithConfig(map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return response.Text(), nil
}
