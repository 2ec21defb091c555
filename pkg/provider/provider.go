package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
Model is one selectable model of a provider.
*/
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

/*
Adapter is the fixed capability surface every provider implements. Each
provider is one concrete case selected by id; nothing provider-specific
leaks past this interface.
*/
type Adapter interface {
	ID() string
	DisplayName() string
	// BuildHeaders returns the HTTP headers for a chat request.
	BuildHeaders(apiKey string) map[string]string
	// Endpoint returns the chat completion URL for the model.
	Endpoint(model, apiKey string) string
	// BuildRequestBody serializes one user message into the provider's
	// request shape.
	BuildRequestBody(model, message string) ([]byte, error)
	// ExtractReplyText pulls the assistant's reply out of a response body.
	ExtractReplyText(body []byte) (string, error)
	// ListModels fetches the selectable models, falling back to a static
	// default list when no API key is supplied.
	ListModels(ctx context.Context, apiKey string) ([]Model, error)
}

/*
ForID returns the adapter for a provider id.
*/
func ForID(id string) (Adapter, error) {
	switch id {
	case "openai":
		return &OpenAI{}, nil
	case "anthropic":
		return &Anthropic{}, nil
	case "gemini":
		return &Gemini{}, nil
	case "openroute":
		return &OpenRoute{}, nil
	case "groq":
		return &Groq{}, nil
	case "ollama":
		return &Ollama{}, nil
	}

	return nil, errors.ErrNotFound.WithMessagef("unknown provider: %s", id)
}

/*
All returns every adapter in presentation order.
*/
func All() []Adapter {
	return []Adapter{
		&OpenAI{}, &Anthropic{}, &Gemini{}, &OpenRoute{}, &Groq{}, &Ollama{},
	}
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

/*
getJSON fetches a URL with headers and returns the raw body, mapping any
non-2xx status to a RemoteError.
*/
func getJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.ErrRemote.WithMessagef("fetching %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrRemote.WithMessagef("reading %s: %v", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ErrRemote.WithMessagef(
			"%s returned status %d: %s", url, resp.StatusCode, string(body),
		)
	}

	return body, nil
}

// Model lists rarely change within a session, so they are cached per
// provider and key prefix.
var (
	modelCacheMu sync.RWMutex
	modelCache   = make(map[string][]Model)
)

func cacheKey(providerID, apiKey string) string {
	prefix := apiKey
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}

	return fmt.Sprintf("%s_%s", providerID, prefix)
}

func cachedModels(providerID, apiKey string) ([]Model, bool) {
	modelCacheMu.RLock()
	defer modelCacheMu.RUnlock()

	models, ok := modelCache[cacheKey(providerID, apiKey)]
	return models, ok
}

func cacheModels(providerID, apiKey string, models []Model) {
	modelCacheMu.Lock()
	defer modelCacheMu.Unlock()
	modelCache[cacheKey(providerID, apiKey)] = models
}

/*
listOrDefault wraps the fetch-with-cache-and-fallback dance shared by all
adapters: cached result first, static defaults without a key, and the
static defaults again when the live fetch fails.
*/
func listOrDefault(
	providerID, apiKey string,
	defaults []Model,
	fetch func() ([]Model, error),
) ([]Model, error) {
	if models, ok := cachedModels(providerID, apiKey); ok {
		return models, nil
	}

	if apiKey == "" {
		return defaults, nil
	}

	models, err := fetch()
	if err != nil {
		log.Warn("model list fetch failed, using defaults", "provider", providerID, "error", err)
		return defaults, nil
	}

	cacheModels(providerID, apiKey, models)
	return models, nil
}
