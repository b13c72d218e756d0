package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// AzureOpenAIProvider implements EmbeddingProvider against an Azure OpenAI
// embeddings deployment.
type AzureOpenAIProvider struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
	Client     *http.Client
}

var _ EmbeddingProvider = &AzureOpenAIProvider{}

func NewAzureOpenAIProvider(endpoint, apiKey, apiVersion, deployment string) *AzureOpenAIProvider {
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}
	return &AzureOpenAIProvider{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		APIVersion: apiVersion,
		Deployment: deployment,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type azureEmbeddingRequest struct {
	Input []string `json:"input"`
}

type azureEmbeddingItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type azureEmbeddingResponse struct {
	Data []azureEmbeddingItem `json:"data"`
}

func (p *AzureOpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(azureEmbeddingRequest{Input: texts})
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidInput, Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := fmt.Sprintf(
		"%s/openai/deployments/%s/embeddings?api-version=%s",
		p.Endpoint, p.Deployment, p.APIVersion,
	)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, &ProviderError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("api-key", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Kind: classifyStatus(resp.StatusCode),
			Err:  fmt.Errorf("azure embedding error: status %d, body %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	var azureResp azureEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &azureResp); err != nil {
		return nil, &ProviderError{Kind: KindTransport, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if len(azureResp.Data) != len(texts) {
		return nil, &ProviderError{
			Kind: KindTransport,
			Err:  fmt.Errorf("expected %d embeddings, got %d", len(texts), len(azureResp.Data)),
		}
	}

	// The API carries an index per item; reorder to match input order.
	sort.Slice(azureResp.Data, func(i, j int) bool {
		return azureResp.Data[i].Index < azureResp.Data[j].Index
	})

	vectors := make([][]float32, len(azureResp.Data))
	for i, item := range azureResp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
