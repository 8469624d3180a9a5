package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
)

const serviceName = "genai"

var ErrEmptyResponse = errors.New("no text in response")

type (
	part struct {
		Text string `json:"text"`
	}
	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
)

// GeminiGenerator calls the generateContent endpoint of a Gemini-compatible API.
type GeminiGenerator struct {
	client  *rest.Client
	baseURL string
	model   string
	apiKey  string
}

var _ ai.TextGenerator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(conf *core.Config) *GeminiGenerator {
	return &GeminiGenerator{
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.GenAI.Timeout}},
		baseURL: conf.GenAI.BaseURL,
		model:   conf.GenAI.Model,
		apiKey:  conf.GenAI.ApiKey,
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", errors.Wrap(err, "encoding request")
	}

	res, err := g.client.SendWithContext(ctx, rest.Request{
		Method:      rest.Post,
		BaseURL:     g.baseURL + "/v1beta/models/" + g.model + ":generateContent",
		Headers:     map[string]string{"Content-Type": "application/json"},
		QueryParams: map[string]string{"key": g.apiKey},
		Body:        body,
	})
	if err != nil {
		return "", core.NewExternalServiceError(serviceName, 0, err)
	}

	var out generateResponse
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		msg := http.StatusText(res.StatusCode)
		if json.Unmarshal([]byte(res.Body), &out) == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", core.NewExternalServiceError(serviceName, res.StatusCode, errors.New(msg))
	}
	if err = json.Unmarshal([]byte(res.Body), &out); err != nil {
		return "", core.NewExternalServiceError(serviceName, res.StatusCode, errors.Wrap(err, "decoding response"))
	}

	var text strings.Builder
	for _, c := range out.Candidates {
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", core.NewExternalServiceError(serviceName, res.StatusCode, ErrEmptyResponse)
	}
	return text.String(), nil
}
