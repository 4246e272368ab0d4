package llm

import "context"

// geminiProvider embeds through Gemini's OpenAI-compatible endpoint, which
// has no /v1 path prefix.
//
//	gemini-embedding-001   (3072 dim, multilingual)
type geminiProvider struct {
	base openAICompatClient
}

// NewGemini creates an embedder for Google Gemini.
func NewGemini(cfg Config) Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	return &geminiProvider{base: newOpenAICompatClientPrefix(cfg, "")}
}

func (p *geminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

func (p *geminiProvider) Identity() string { return identity(p.base.cfg) }
