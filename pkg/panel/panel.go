package panel

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/machinewire/mcpchat/pkg/bridge"
	"github.com/machinewire/mcpchat/pkg/conn"
	"github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/types"
)

/*
Servers is the registry surface the panel manager reads.
*/
type Servers interface {
	Server(name string) (types.ServerConfig, bool)
}

/*
Connections gates tool execution on connectivity.
*/
type Connections interface {
	IsConnected(name string) bool
	ConnectOne(ctx context.Context, name string) (conn.ConnectOutcome, error)
}

/*
Backend is the remote surface for tool schemas and invocation.
*/
type Backend interface {
	Tools(ctx context.Context, server string) ([]bridge.RemoteTool, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) (bridge.CallToolResult, error)
}

/*
Field is one input of a panel's form, derived from the tool's schema.
*/
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []any
	Value       string
}

/*
Panel is one open tool-invocation widget: a server+tool pair plus the
current form values. Panels are ephemeral; they never survive a reload.
*/
type Panel struct {
	ID     string
	Server string
	Tool   string
	Fields []Field
}

// freeTextField is the fallback when a tool declares no input schema.
const freeTextField = "input"

/*
Manager tracks the set of currently open tool panels.
*/
type Manager struct {
	mu      sync.RWMutex
	panels  map[string]*Panel
	servers Servers
	conns   Connections
	backend Backend
}

func NewManager(servers Servers, conns Connections, backend Backend) *Manager {
	return &Manager{
		panels:  make(map[string]*Panel),
		servers: servers,
		conns:   conns,
		backend: backend,
	}
}

/*
Open registers a new panel for the given server and tool. A disabled server
fails immediately with no side effect; a disconnected one gets exactly one
connect attempt. The form is derived from the tool's schema, falling back
to a single free-text field when none is available.
*/
func (m *Manager) Open(ctx context.Context, server, tool string) (string, error) {
	config, ok := m.servers.Server(server)
	if !ok {
		return "", errors.ErrNotFound.WithMessagef("unknown server: %s", server)
	}

	if config.Disabled {
		return "", errors.ErrServerDisabled.WithMessagef("server %s is disabled", server)
	}

	if !m.conns.IsConnected(server) {
		if _, err := m.conns.ConnectOne(ctx, server); err != nil {
			return "", err
		}
	}

	schema := m.toolSchema(ctx, config, tool)

	panel := &Panel{
		ID:     uuid.New().String(),
		Server: server,
		Tool:   tool,
		Fields: deriveFields(schema),
	}

	m.mu.Lock()
	m.panels[panel.ID] = panel
	m.mu.Unlock()

	log.Info("panel opened", "server", server, "tool", tool, "panel", panel.ID)
	return panel.ID, nil
}

/*
toolSchema prefers the schema declared in local configuration and falls
back to asking the backend, which reads it from the live server.
*/
func (m *Manager) toolSchema(ctx context.Context, config types.ServerConfig, tool string) *types.SchemaNode {
	if descriptor, ok := config.FindTool(tool); ok && descriptor.InputSchema != nil {
		return descriptor.InputSchema
	}

	remote, err := m.backend.Tools(ctx, config.Name)
	if err != nil {
		log.Debug("could not fetch remote tool schema", "server", config.Name, "error", err)
		return nil
	}

	for _, candidate := range remote {
		if candidate.Name == tool {
			return candidate.Schema
		}
	}

	return nil
}

/*
deriveFields flattens an object schema's properties into form fields in a
stable order. Anything that is not an object schema becomes the free-text
fallback.
*/
func deriveFields(schema *types.SchemaNode) []Field {
	if schema == nil || schema.Type != types.SchemaObject || len(schema.Properties) == 0 {
		return []Field{{Name: freeTextField, Type: types.SchemaString}}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}

	// map iteration order is random; required fields first, then by name.
	sortFieldNames(names, schema)

	fields := make([]Field, 0, len(names))

	for _, name := range names {
		property := schema.Properties[name]

		fieldType := property.Type
		if fieldType == "" {
			fieldType = types.SchemaString
		}

		fields = append(fields, Field{
			Name:        name,
			Type:        fieldType,
			Description: property.Description,
			Required:    schema.IsRequired(name),
			Enum:        property.Enum,
		})
	}

	return fields
}

func sortFieldNames(names []string, schema *types.SchemaNode) {
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := schema.IsRequired(names[i]), schema.IsRequired(names[j])
		if ri != rj {
			return ri
		}

		return names[i] < names[j]
	})
}

/*
SetValue stores a raw form value on an open panel. Values stay raw until
Execute coerces them.
*/
func (m *Manager) SetValue(panelID, field, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	panel, ok := m.panels[panelID]
	if !ok {
		return errors.ErrNotFound.WithMessagef("unknown panel: %s", panelID)
	}

	for i := range panel.Fields {
		if panel.Fields[i].Name == field {
			panel.Fields[i].Value = raw
			return nil
		}
	}

	return errors.ErrNotFound.WithMessagef("panel has no field %q", field)
}

/*
Get returns a snapshot of an open panel.
*/
func (m *Manager) Get(panelID string) (Panel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	panel, ok := m.panels[panelID]
	if !ok {
		return Panel{}, false
	}

	snapshot := *panel
	snapshot.Fields = append([]Field(nil), panel.Fields...)
	return snapshot, true
}

/*
Open panels in no particular order; presentation decides layout.
*/
func (m *Manager) Panels() []Panel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	panels := make([]Panel, 0, len(m.panels))
	for _, panel := range m.panels {
		snapshot := *panel
		snapshot.Fields = append([]Field(nil), panel.Fields...)
		panels = append(panels, snapshot)
	}

	return panels
}

/*
Execute coerces the panel's form values by their declared types and calls
the tool. Coercion runs to completion before any network call: a tool call
is never partially applied. The server is re-checked here because it may
have been disabled or disconnected since the panel was opened; a tool only
runs while its owning server is enabled and in the connected set.
*/
func (m *Manager) Execute(ctx context.Context, panelID string) (bridge.CallToolResult, error) {
	panel, ok := m.Get(panelID)
	if !ok {
		return bridge.CallToolResult{}, errors.ErrNotFound.WithMessagef("unknown panel: %s", panelID)
	}

	config, ok := m.servers.Server(panel.Server)
	if !ok {
		return bridge.CallToolResult{}, errors.ErrNotFound.WithMessagef("unknown server: %s", panel.Server)
	}

	if config.Disabled {
		return bridge.CallToolResult{}, errors.ErrServerDisabled.WithMessagef(
			"server %s is disabled", panel.Server,
		)
	}

	args := make(map[string]any, len(panel.Fields))

	for _, field := range panel.Fields {
		value, include, err := coerce(field)
		if err != nil {
			return bridge.CallToolResult{}, err
		}

		if include {
			args[field.Name] = value
		}
	}

	if !m.conns.IsConnected(panel.Server) {
		if _, err := m.conns.ConnectOne(ctx, panel.Server); err != nil {
			return bridge.CallToolResult{}, err
		}
	}

	result, err := m.backend.CallTool(ctx, panel.Server, panel.Tool, args)
	if err != nil {
		return bridge.CallToolResult{}, err
	}

	if !result.Success {
		return result, errors.ErrRemote.WithMessagef("tool %s failed: %s", panel.Tool, result.Error)
	}

	return result, nil
}

/*
Close removes a panel. Closing an unknown or already-closed panel is a
no-op: the UI may deliver repeated close events.
*/
func (m *Manager) Close(panelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.panels, panelID)
}

/*
coerce converts one raw form value to its schema-declared type. Empty
non-boolean values are omitted from the call arguments.
*/
func coerce(field Field) (any, bool, error) {
	switch field.Type {
	case types.SchemaBoolean:
		// Checkbox semantics: anything the UI marks as checked is true,
		// everything else (including empty) is false.
		checked := field.Value == "true" || field.Value == "on" || field.Value == "1"
		return checked, true, nil

	case types.SchemaInteger:
		if field.Value == "" {
			return nil, false, nil
		}

		n, err := strconv.ParseInt(field.Value, 10, 64)
		if err != nil {
			return nil, false, errors.ErrInvalidNumber.WithMessagef(
				"field %q: %q is not an integer", field.Name, field.Value,
			)
		}

		return n, true, nil

	case types.SchemaNumber:
		if field.Value == "" {
			return nil, false, nil
		}

		f, err := strconv.ParseFloat(field.Value, 64)
		if err != nil {
			return nil, false, errors.ErrInvalidNumber.WithMessagef(
				"field %q: %q is not a number", field.Name, field.Value,
			)
		}

		return f, true, nil

	case types.SchemaObject, types.SchemaArray:
		if field.Value == "" {
			return nil, false, nil
		}

		var parsed any
		if err := json.Unmarshal([]byte(field.Value), &parsed); err != nil {
			return nil, false, errors.ErrInvalidJSON.WithMessagef(
				"field %q: %v", field.Name, err,
			)
		}

		return parsed, true, nil

	default:
		if field.Value == "" && !field.Required {
			return nil, false, nil
		}

		return field.Value, true, nil
	}
}
