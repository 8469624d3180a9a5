package genai

import (
	"context"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
)

// StaticGenerator answers every prompt with the same text. Used when no API key is configured, and in tests.
type StaticGenerator struct {
	Text string
}

var _ ai.TextGenerator = StaticGenerator{}

func NewStaticGenerator(text string) StaticGenerator {
	return StaticGenerator{Text: text}
}

func (g StaticGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.Text, nil
}

// FailingGenerator fails every call with an ExternalServiceError.
type FailingGenerator struct {
	StatusCode int
	Err        error
}

var _ ai.TextGenerator = FailingGenerator{}

func (g FailingGenerator) Generate(context.Context, string) (string, error) {
	return "", core.NewExternalServiceError(serviceName, g.StatusCode, g.Err)
}

// New returns the Gemini client when an API key is configured, and a StaticGenerator otherwise.
func New(conf *core.Config, logger core.Logger) ai.TextGenerator {
	if conf.GenAI.ApiKey == "" {
		logger.Warn("genai.apiKey not set: AI responses are placeholders")
		return NewStaticGenerator("AI assistance is not configured.")
	}
	return NewGeminiGenerator(conf)
}
