package provider

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
Anthropic targets the messages API.
*/
type Anthropic struct{}

func (p *Anthropic) ID() string          { return "anthropic" }
func (p *Anthropic) DisplayName() string { return "Anthropic" }

func (p *Anthropic) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
		"Content-Type":      "application/json",
	}
}

func (p *Anthropic) Endpoint(model, apiKey string) string {
	return "https://api.anthropic.com/v1/messages"
}

func (p *Anthropic) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model":      model,
		"max_tokens": 1000,
		"messages": []map[string]string{
			{"role": "user", "content": message},
		},
	})
}

func (p *Anthropic) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "content.0.text")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("anthropic response carries no reply text")
	}

	return reply.String(), nil
}

// The messages API has no public model-listing endpoint worth depending
// on, so the list is static whether or not a key is present.
func (p *Anthropic) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	return []Model{
		{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus"},
		{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet"},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku"},
		{ID: "claude-2.1", Name: "Claude 2.1"},
	}, nil
}
