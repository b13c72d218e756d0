package factory

import (
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/llm/azure"
	"ai-assistant-be/pkg/llm/ollama"
	"fmt"
)

// Config carries the provider-specific settings the factory needs.
type Config struct {
	Provider  string // "ollama" or "azure"
	ModelName string
	BaseURL   string

	// Azure only
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.ModelName), nil
	case "azure":
		if cfg.AzureEndpoint == "" || cfg.AzureAPIKey == "" {
			return nil, fmt.Errorf("azure provider requires endpoint and api key")
		}
		return azure.NewAzureProvider(cfg.AzureEndpoint, cfg.ModelName, cfg.AzureAPIKey, cfg.AzureAPIVersion), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
