package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
OpenAI targets the chat completions API.
*/
type OpenAI struct{}

func (p *OpenAI) ID() string          { return "openai" }
func (p *OpenAI) DisplayName() string { return "OpenAI" }

func (p *OpenAI) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
}

func (p *OpenAI) Endpoint(model, apiKey string) string {
	return "https://api.openai.com/v1/chat/completions"
}

func (p *OpenAI) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
		"temperature": 0.7,
	})
}

func (p *OpenAI) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "choices.0.message.content")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("openai response carries no reply text")
	}

	return reply.String(), nil
}

func (p *OpenAI) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	defaults := []Model{
		{ID: "gpt-4o", Name: "GPT-4o"},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo"},
		{ID: "gpt-4", Name: "GPT-4"},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo"},
	}

	return listOrDefault(p.ID(), apiKey, defaults, func() ([]Model, error) {
		body, err := getJSON(ctx, "https://api.openai.com/v1/models", p.BuildHeaders(apiKey))
		if err != nil {
			return nil, err
		}

		models := make([]Model, 0)

		for _, entry := range gjson.GetBytes(body, "data.#.id").Array() {
			id := entry.String()
			if strings.Contains(id, "gpt") {
				models = append(models, Model{ID: id, Name: id})
			}
		}

		return models, nil
	})
}
