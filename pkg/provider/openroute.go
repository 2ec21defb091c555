package provider

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
OpenRoute targets the OpenRouter aggregation API, which speaks the chat
completions dialect.
*/
type OpenRoute struct{}

func (p *OpenRoute) ID() string          { return "openroute" }
func (p *OpenRoute) DisplayName() string { return "OpenRoute" }

func (p *OpenRoute) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"X-Title":       "mcpchat",
	}
}

func (p *OpenRoute) Endpoint(model, apiKey string) string {
	return "https://openrouter.ai/api/v1/chat/completions"
}

func (p *OpenRoute) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
	})
}

func (p *OpenRoute) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "choices.0.message.content")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("openroute response carries no reply text")
	}

	return reply.String(), nil
}

func (p *OpenRoute) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	defaults := []Model{
		{ID: "openai/gpt-4o", Name: "OpenAI GPT-4o"},
		{ID: "anthropic/claude-3-opus", Name: "Anthropic Claude 3 Opus"},
		{ID: "google/gemini-pro", Name: "Google Gemini Pro"},
		{ID: "meta-llama/llama-3-70b-instruct", Name: "Meta Llama 3 70B"},
	}

	return listOrDefault(p.ID(), apiKey, defaults, func() ([]Model, error) {
		body, err := getJSON(ctx, "https://openrouter.ai/api/v1/models", p.BuildHeaders(apiKey))
		if err != nil {
			return nil, err
		}

		models := make([]Model, 0)

		for _, entry := range gjson.GetBytes(body, "data").Array() {
			id := entry.Get("id").String()

			name := entry.Get("name").String()
			if name == "" {
				name = id
			}

			models = append(models, Model{ID: id, Name: name})
		}

		return models, nil
	})
}
