package llm

import "context"

// openRouterProvider embeds through OpenRouter's OpenAI-compatible API.
type openRouterProvider struct {
	base openAICompatClient
}

// NewOpenRouter creates an embedder for OpenRouter.
func NewOpenRouter(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

func (p *openRouterProvider) Identity() string { return identity(p.base.cfg) }
