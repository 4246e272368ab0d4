package llm

import "context"

// openAIProvider embeds through the OpenAI API.
//
// Multilingual models that handle the Spanish graph well:
//
//	text-embedding-3-small  (1536 dim)  default
//	text-embedding-3-large  (3072 dim)
//
// API key: set via config or the QOYLLUR_EMBEDDING_API_KEY env var.
type openAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates an embedder for OpenAI.
func NewOpenAI(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

func (p *openAIProvider) Identity() string { return identity(p.base.cfg) }
