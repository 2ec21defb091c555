package types

import "time"

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

/*
UsedTool records one tool that contributed to a turn's answer, together with
the arguments of its first invocation.
*/
type UsedTool struct {
	Name   string         `json:"name"`
	Server string         `json:"server"`
	Args   map[string]any `json:"args,omitempty"`
}

/*
TranscriptEntry is one committed turn in the append-only chat log.
*/
type TranscriptEntry struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	UsedTools []UsedTool `json:"usedTools,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
