package provider

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
Ollama targets a local Ollama instance; no API key is involved.
*/
type Ollama struct{}

const ollamaBase = "http://localhost:11434"

func (p *Ollama) ID() string          { return "ollama" }
func (p *Ollama) DisplayName() string { return "Ollama (Local)" }

func (p *Ollama) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (p *Ollama) Endpoint(model, apiKey string) string {
	return ollamaBase + "/api/generate"
}

func (p *Ollama) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"model":  model,
		"prompt": message,
		"stream": false,
	})
}

func (p *Ollama) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "response")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("ollama response carries no reply text")
	}

	return reply.String(), nil
}

func (p *Ollama) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	offline := []Model{
		{ID: "llama3", Name: "Llama 3 (Ollama not connected)"},
		{ID: "mistral", Name: "Mistral (Ollama not connected)"},
		{ID: "gemma", Name: "Gemma (Ollama not connected)"},
		{ID: "phi", Name: "Phi (Ollama not connected)"},
	}

	body, err := getJSON(ctx, ollamaBase+"/api/tags", nil)
	if err != nil {
		return offline, nil
	}

	models := make([]Model, 0)

	for _, entry := range gjson.GetBytes(body, "models.#.name").Array() {
		models = append(models, Model{ID: entry.String(), Name: entry.String()})
	}

	if len(models) == 0 {
		return offline, nil
	}

	return models, nil
}
