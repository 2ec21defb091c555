package types

// Step types returned by the orchestration endpoint.
const (
	StepResponse   = "response"
	StepToolCall   = "tool_call"
	StepToolResult = "tool_result"
	StepInfo       = "info"
)

/*
Step is one unit of an orchestration response: a fragment of model text, a
tool invocation request, a tool result payload, or a backend log line.
*/
type Step struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}
