package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
Gemini targets the generateContent API. The key travels as a query
parameter rather than a header.
*/
type Gemini struct{}

func (p *Gemini) ID() string          { return "gemini" }
func (p *Gemini) DisplayName() string { return "Google Gemini" }

func (p *Gemini) BuildHeaders(apiKey string) map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func (p *Gemini) Endpoint(model, apiKey string) string {
	return fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		model, apiKey,
	)
}

func (p *Gemini) BuildRequestBody(model, message string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": message}}},
		},
		"generationConfig": map[string]any{"temperature": 0.7},
	})
}

func (p *Gemini) ExtractReplyText(body []byte) (string, error) {
	reply := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if !reply.Exists() {
		return "", errors.ErrRemote.WithMessagef("gemini response carries no reply text")
	}

	return reply.String(), nil
}

func (p *Gemini) ListModels(ctx context.Context, apiKey string) ([]Model, error) {
	defaults := []Model{
		{ID: "gemini-pro", Name: "Gemini Pro"},
		{ID: "gemini-ultra", Name: "Gemini Ultra"},
	}

	return listOrDefault(p.ID(), apiKey, defaults, func() ([]Model, error) {
		url := "https://generativelanguage.googleapis.com/v1beta/models?key=" + apiKey

		body, err := getJSON(ctx, url, nil)
		if err != nil {
			return nil, err
		}

		models := make([]Model, 0)

		for _, entry := range gjson.GetBytes(body, "models").Array() {
			fullName := entry.Get("name").String()
			if !strings.Contains(fullName, "gemini") {
				continue
			}

			id := fullName
			if idx := strings.LastIndex(fullName, "/"); idx >= 0 {
				id = fullName[idx+1:]
			}

			display := entry.Get("displayName").String()
			if display == "" {
				display = id
			}

			models = append(models, Model{ID: id, Name: display})
		}

		return models, nil
	})
}
