package embedclient

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultModel is used when OpenAIClient is constructed with an empty model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// OpenAIClient implements enrich.Embedder against the OpenAI embeddings API.
type OpenAIClient struct {
	client oai.Client
	model  string
}

// NewOpenAIClient constructs a client. If model is empty, DefaultModel is
// used.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedclient: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: client, model: model}, nil
}

// Embed satisfies enrich.Embedder.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: c.model,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedclient: openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedclient: openai embed: empty response")
	}
	return float64ToFloat32(resp.Data[0].Embedding), nil
}
