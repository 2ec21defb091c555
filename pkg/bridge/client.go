package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/types"
)

/*
Client talks to the backend service that holds the long-lived connections to
tool servers and model providers. Every method is one HTTP round trip with a
bounded timeout; there is no retry at this layer, the caller decides whether
to re-trigger.
*/
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

/*
WithTimeout overrides the per-call timeout. A timeout is treated as a failed
call; it never rolls back state already committed by earlier calls.
*/
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

/*
WithHTTPClient swaps the underlying HTTP client, used by tests.
*/
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, option := range options {
		option(client)
	}

	return client
}

/*
Provider is one hosted model vendor the backend can reach.
*/
type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

/*
Model is one selectable model of a provider.
*/
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

/*
ConnectResult is the backend's answer to a single-server connect request.
*/
type ConnectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

/*
ConnectAllResult summarizes a batch connect. Servers lists every server the
backend reports as connected after the batch, including ones that already
were.
*/
type ConnectAllResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Servers []string `json:"servers"`
}

/*
RemoteTool is a tool descriptor as reported by the backend.
*/
type RemoteTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      *types.SchemaNode `json:"schema,omitempty"`
}

/*
CallToolResult carries the outcome of one tool invocation.
*/
type CallToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

/*
ProcessResult is the orchestration endpoint's answer: the composed response
text plus the ordered step sequence that produced it.
*/
type ProcessResult struct {
	Success  bool         `json:"success"`
	Response string       `json:"response,omitempty"`
	Steps    []types.Step `json:"steps,omitempty"`
}

/*
Providers lists the model providers the backend knows about.
*/
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	var out struct {
		Providers []Provider `json:"providers"`
	}

	if err := c.get(ctx, "/api/providers", &out); err != nil {
		return nil, err
	}

	return out.Providers, nil
}

/*
Models lists the models of one provider. The API key travels per call; the
backend stores nothing.
*/
func (c *Client) Models(ctx context.Context, providerID, apiKey string) ([]Model, error) {
	path := "/api/models/" + url.PathEscape(providerID)
	if apiKey != "" {
		path += "?api_key=" + url.QueryEscape(apiKey)
	}

	var out struct {
		Models []Model `json:"models"`
	}

	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}

	return out.Models, nil
}

/*
SendMessage forwards one plain chat message (no tool orchestration) to the
selected provider and returns the reply text.
*/
func (c *Client) SendMessage(ctx context.Context, provider, model, apiKey, message string) (string, error) {
	var out struct {
		Response string `json:"response"`
	}

	err := c.post(ctx, "/api/send_message", map[string]any{
		"provider": provider,
		"model":    model,
		"api_key":  apiKey,
		"message":  message,
	}, &out)
	if err != nil {
		return "", err
	}

	return out.Response, nil
}

/*
Servers lists the tool servers configured on the backend side.
*/
func (c *Client) Servers(ctx context.Context) ([]string, error) {
	var out struct {
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	}

	if err := c.get(ctx, "/api/mcp/servers", &out); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Servers))
	for _, server := range out.Servers {
		names = append(names, server.Name)
	}

	return names, nil
}

/*
Connect asks the backend to establish a connection to one tool server.
*/
func (c *Client) Connect(ctx context.Context, server string) (ConnectResult, error) {
	var out ConnectResult

	err := c.post(ctx, "/api/mcp/connect", map[string]any{"server": server}, &out)
	if err != nil {
		return ConnectResult{}, err
	}

	return out, nil
}

/*
ConnectAll asks the backend to connect every enabled tool server in one
batch. The backend owns parallelism and per-server fault isolation.
*/
func (c *Client) ConnectAll(ctx context.Context) (ConnectAllResult, error) {
	var out ConnectAllResult

	err := c.post(ctx, "/api/mcp/connect-all", map[string]any{}, &out)
	if err != nil {
		return ConnectAllResult{}, err
	}

	return out, nil
}

/*
Tools lists the tools of one connected server.
*/
func (c *Client) Tools(ctx context.Context, server string) ([]RemoteTool, error) {
	var out struct {
		Tools []RemoteTool `json:"tools"`
	}

	if err := c.get(ctx, "/api/mcp/tools/"+url.PathEscape(server), &out); err != nil {
		return nil, err
	}

	return out.Tools, nil
}

/*
CallTool invokes one tool on one server with already-typed arguments.
*/
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]any) (CallToolResult, error) {
	var out CallToolResult

	err := c.post(ctx, "/api/mcp/call_tool", map[string]any{
		"server": server,
		"tool":   tool,
		"args":   args,
	}, &out)
	if err != nil {
		return CallToolResult{}, err
	}

	return out, nil
}

/*
Process submits a free-text query to the orchestration endpoint and returns
the ordered step sequence.
*/
func (c *Client) Process(ctx context.Context, query string) (ProcessResult, error) {
	var out ProcessResult

	err := c.post(ctx, "/api/mcp/ai_process", map[string]any{"query": query}, &out)
	if err != nil {
		return ProcessResult{}, err
	}

	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.ErrRemote.WithMessagef("building request for %s: %v", path, err)
	}

	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.ErrRemote.WithMessagef("encoding request for %s: %v", path, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload),
	)
	if err != nil {
		return errors.ErrRemote.WithMessagef("building request for %s: %v", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	log.Debug("backend request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.ErrRemote.WithMessagef("backend unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.ErrRemote.WithMessagef("reading backend response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.ErrRemote.WithMessagef("%s", remoteMessage(resp.StatusCode, body))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.ErrRemote.WithMessagef("decoding backend response: %v", err)
	}

	return nil
}

/*
remoteMessage extracts the backend's error message from a non-2xx body.
Errors arrive as {"error": "..."} but anything is surfaced verbatim rather
than swallowed.
*/
func remoteMessage(status int, body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		return msg.String()
	}

	return fmt.Sprintf("backend returned status %d: %s", status, string(body))
}
