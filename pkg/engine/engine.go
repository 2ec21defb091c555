package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/machinewire/mcpchat/pkg/bridge"
	"github.com/machinewire/mcpchat/pkg/conn"
	"github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/notify"
	"github.com/machinewire/mcpchat/pkg/transcript"
	"github.com/machinewire/mcpchat/pkg/types"
)

/*
State is the engine's position inside one user turn.
*/
type State string

const (
	StateIdle          State = "idle"
	StateSubmitting    State = "submitting"
	StateAwaitingSteps State = "awaiting_steps"
	StateExecuting     State = "executing"
)

/*
Backend is the slice of the remote collaborator the engine drives: the
orchestration endpoint plus direct tool calls.
*/
type Backend interface {
	Process(ctx context.Context, query string) (bridge.ProcessResult, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) (bridge.CallToolResult, error)
}

/*
Connections is the coordinator surface the engine needs.
*/
type Connections interface {
	ConnectAll(ctx context.Context) (conn.BatchResult, error)
	ConnectOne(ctx context.Context, name string) (conn.ConnectOutcome, error)
	IsConnected(name string) bool
}

/*
Servers resolves tool ownership against the configured registry.
*/
type Servers interface {
	Server(name string) (types.ServerConfig, bool)
	FindToolOwner(tool string) (string, bool)
}

/*
Engine drives one user turn at a time: connect enabled servers, submit the
query, walk the returned steps in order, execute whatever tool calls fall to
the client, and commit exactly one assistant entry. Concurrent submissions
are rejected, never queued.
*/
type Engine struct {
	mu         sync.Mutex
	state      State
	backend    Backend
	conns      Connections
	servers    Servers
	transcript *transcript.Transcript
	hub        *notify.Hub
}

func New(
	backend Backend,
	conns Connections,
	servers Servers,
	log *transcript.Transcript,
	hub *notify.Hub,
) *Engine {
	return &Engine{
		state:      StateIdle,
		backend:    backend,
		conns:      conns,
		servers:    servers,
		transcript: log,
		hub:        hub,
	}
}

/*
State reports the engine's current turn state.
*/
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

/*
Submit runs one full turn for the query. It accepts only from Idle; while a
turn is in flight any further call returns ErrBusy and leaves the transcript
untouched. The engine always returns to Idle, whatever happened in between.
*/
func (e *Engine) Submit(ctx context.Context, query string) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		e.hub.Warnf("still processing the previous request")
		return errors.ErrBusy
	}
	e.state = StateSubmitting
	e.mu.Unlock()

	defer e.setState(StateIdle)

	e.transcript.Append(types.TranscriptEntry{
		Role:    types.RoleUser,
		Content: query,
	})

	// Later steps may reference any enabled server, so every enabled server
	// gets a connection attempt up front. Partial failure is fine: the steps
	// that need a missing server fail individually later.
	if _, err := e.conns.ConnectAll(ctx); err != nil {
		e.hub.Warnf("batch connect failed: %v", err)
	}

	e.setState(StateAwaitingSteps)

	result, err := e.backend.Process(ctx, query)
	if err != nil {
		// The orchestration endpoint itself was unreachable: no steps are
		// processed, the turn commits an error entry and ends.
		e.transcript.Append(types.TranscriptEntry{
			Role:    types.RoleAssistant,
			Content: fmt.Sprintf("Error: %v", err),
		})
		e.hub.Errorf("%v", err)
		return err
	}

	answer, usedTools := e.walkSteps(ctx, result.Steps)

	if answer == "" && result.Response != "" {
		answer = result.Response
	}

	e.transcript.Append(types.TranscriptEntry{
		Role:      types.RoleAssistant,
		Content:   answer,
		UsedTools: usedTools,
	})

	return nil
}

/*
walkSteps processes the ordered step sequence and returns the composed
answer plus the deduplicated list of tools used. Steps are fault-isolated:
one failing tool call becomes an inline error block and the walk continues.
*/
func (e *Engine) walkSteps(ctx context.Context, steps []types.Step) (string, []types.UsedTool) {
	parts := make([]string, 0, len(steps))
	usedTools := make([]types.UsedTool, 0)
	seen := make(map[string]struct{})

	record := func(server, tool string, args map[string]any) {
		key := server + "\x00" + tool
		if _, ok := seen[key]; ok {
			return
		}

		seen[key] = struct{}{}
		usedTools = append(usedTools, types.UsedTool{Name: tool, Server: server, Args: args})
	}

	for i, step := range steps {
		switch step.Type {
		case types.StepResponse:
			if step.Content != "" {
				parts = append(parts, step.Content)
			}

		case types.StepToolResult:
			parts = append(parts, resultBlock(step.Content))

		case types.StepInfo:
			log.Debug("orchestrator info", "content", step.Content)

		case types.StepToolCall:
			server, tool, err := e.resolveTool(step.Tool)
			if err != nil {
				parts = append(parts, fmt.Sprintf("Error: %v", err))
				continue
			}

			record(server, tool, step.Args)

			// A tool_call immediately followed by its tool_result was
			// already executed by the orchestrator; the result arrives in
			// the stream and there is nothing left to run here.
			if i+1 < len(steps) && steps[i+1].Type == types.StepToolResult {
				continue
			}

			e.setState(StateExecuting)

			output, err := e.executeTool(ctx, server, tool, step.Args)
			e.setState(StateAwaitingSteps)

			if err != nil {
				parts = append(parts, fmt.Sprintf("Error: %v", err))
				continue
			}

			parts = append(parts, resultBlock(output))

		default:
			log.Warn("ignoring unknown step type", "type", step.Type)
		}
	}

	return strings.Join(parts, "\n\n"), usedTools
}

/*
resolveTool maps a step's tool identifier onto (server, tool). Identifiers
arrive either as server_toolname or as a bare tool name looked up across
the configured servers.

The underscore convention splits on the FIRST underscore, exactly as the
orchestrator composes the identifiers. When a bare tool name happens to
start with a configured server's name plus an underscore this misattributes
the call; that tie-break is a documented limitation of the wire format and
is deliberately kept.
*/
func (e *Engine) resolveTool(ident string) (string, string, error) {
	if ident == "" {
		return "", "", errors.ErrNotFound.WithMessagef("step carries no tool identifier")
	}

	if idx := strings.Index(ident, "_"); idx > 0 && idx < len(ident)-1 {
		return ident[:idx], ident[idx+1:], nil
	}

	server, ok := e.servers.FindToolOwner(ident)
	if !ok {
		return "", "", errors.ErrNotFound.WithMessagef("no configured server exposes tool %q", ident)
	}

	return server, ident, nil
}

/*
executeTool runs one client-side tool call: confirm the server is enabled,
connect just-in-time when needed, then invoke. A tool may only be invoked
while its owning server is in the connected set.
*/
func (e *Engine) executeTool(
	ctx context.Context, server, tool string, args map[string]any,
) (string, error) {
	config, ok := e.servers.Server(server)
	if !ok {
		return "", errors.ErrNotFound.WithMessagef("unknown server: %s", server)
	}

	if config.Disabled {
		return "", errors.ErrServerDisabled.WithMessagef("server %s is disabled", server)
	}

	if !e.conns.IsConnected(server) {
		if _, err := e.conns.ConnectOne(ctx, server); err != nil {
			return "", err
		}
	}

	result, err := e.backend.CallTool(ctx, server, tool, args)
	if err != nil {
		return "", err
	}

	if !result.Success {
		return "", errors.ErrRemote.WithMessagef("tool %s failed: %s", tool, result.Error)
	}

	return formatResult(result.Result), nil
}

func resultBlock(content string) string {
	return "Tool result:\n```\n" + content + "\n```"
}

/*
formatResult renders a tool's result payload as text; structured payloads
are serialized as JSON.
*/
func formatResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
