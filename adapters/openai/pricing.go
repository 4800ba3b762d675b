package openai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds per-1K-token prices in USD.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// PricingTable maps provider -> model -> prices. Unknown models cost zero;
// callers evaluating unpriced local models still get latency and tokens.
type PricingTable struct {
	Providers map[string]map[string]ModelPricing
}

// LoadPricing reads a pricing table from a yaml file shaped
// provider -> model -> {input, output}.
func LoadPricing(path string) (*PricingTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &PricingTable{Providers: providers}, nil
}

// Cost calculates total cost for one request. Prices are per 1K tokens.
func (t *PricingTable) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	if t == nil || t.Providers == nil {
		return 0
	}
	models, ok := t.Providers[provider]
	if !ok {
		return 0
	}
	p, ok := models[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
