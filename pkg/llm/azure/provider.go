package azure

import (
	"ai-assistant-be/pkg/llm"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AzureProvider calls an Azure OpenAI chat completions deployment.
type AzureProvider struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string
	Client     *http.Client
}

var _ llm.LLMProvider = &AzureProvider{}

func NewAzureProvider(endpoint, deployment, apiKey, apiVersion string) *AzureProvider {
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	return &AzureProvider{
		Endpoint:   endpoint,
		Deployment: deployment,
		APIKey:     apiKey,
		APIVersion: apiVersion,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type azureChatRequest struct {
	Messages    []azureMessage `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

type azureMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureChatResponse struct {
	Choices []struct {
		Message azureMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (a *AzureProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	azureMessages := make([]azureMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		azureMessages[i] = azureMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	deployment := a.Deployment
	if options.Model != "" {
		deployment = options.Model
	}

	reqPayload := azureChatRequest{
		Messages:    azureMessages,
		Temperature: options.Temperature,
	}
	if options.MaxTokens > 0 {
		reqPayload.MaxTokens = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.Endpoint, deployment, a.APIVersion)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.APIKey)

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("azure error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var azureResp azureChatResponse
	if err := json.Unmarshal(bodyBytes, &azureResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if azureResp.Error != nil {
		return "", fmt.Errorf("azure error: %s (%s)", azureResp.Error.Message, azureResp.Error.Code)
	}
	if len(azureResp.Choices) == 0 {
		return "", fmt.Errorf("azure returned no choices")
	}

	return azureResp.Choices[0].Message.Content, nil
}

func (a *AzureProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return a.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
