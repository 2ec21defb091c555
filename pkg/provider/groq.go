package provider

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
Groq exposes an OpenAI-compatible chat completions endpoint.
*/
type Groq struct{}

func (p *Groq) ID() string          { return "groq" }
func (p *Groq) DisplayName() string { return "Groq" }

func (p *Groq) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
}

func (p *Groq) Endpoint(model, apiKey string) string {
	return "https://api.groq.com/openai/v1/chat/completions"
}

func (p *Groq) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
		"temperature": 0.7,
	})
}

func (p *Groq) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "choices.0.message.content")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("groq response carries no reply text")
	}

	return reply.String(), nil
}

func (p *Groq) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	defaults := []Model{
		{ID: "llama3-70b-8192", Name: "Llama-3 70B"},
		{ID: "llama3-8b-8192", Name: "Llama-3 8B"},
		{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B"},
		{ID: "gemma-7b-it", Name: "Gemma 7B"},
	}

	return listOrDefault(p.ID(), apiKey, defaults, func() ([]Model, error) {
		body, err := getJSON(ctx, "https://api.groq.com/openai/v1/models", p.BuildHeaders(apiKey))
		if err != nil {
			return nil, err
		}

		models := make([]Model, 0)

		for _, entry := range gjson.GetBytes(body, "data.#.id").Array() {
			models = append(models, Model{ID: entry.String(), Name: entry.String()})
		}

		return models, nil
	})
}
