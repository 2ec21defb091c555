package types

import (
	"encoding/json"
	"fmt"
)

/*
ServerConfig is the declarative description of one configured tool server.
The name is the unique key within the registry; tool and resource names are
unique only within their owning server.
*/
type ServerConfig struct {
	Name      string               `json:"name,omitempty"`
	Disabled  bool                 `json:"disabled,omitempty"`
	Tools     []ToolDescriptor     `json:"tools,omitempty"`
	Resources []ResourceDescriptor `json:"resources,omitempty"`
}

/*
ToolDescriptor describes one named callable exposed by a tool server.
Immutable once loaded from configuration.
*/
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *SchemaNode `json:"inputSchema,omitempty"`
}

/*
ResourceDescriptor describes one URI-addressable readable item exposed by a
tool server.
*/
type ResourceDescriptor struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// Configuration files may declare tools and resources either as bare strings
// or as full objects, so both carry custom unmarshalling.

func (t *ToolDescriptor) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Name = name
		return nil
	}

	type alias ToolDescriptor
	var full alias
	if err := json.Unmarshal(data, &full); err != nil {
		return fmt.Errorf("tool entry is neither a string nor an object: %w", err)
	}

	*t = ToolDescriptor(full)
	return nil
}

func (r *ResourceDescriptor) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		return nil
	}

	type alias ResourceDescriptor
	var full alias
	if err := json.Unmarshal(data, &full); err != nil {
		return fmt.Errorf("resource entry is neither a string nor an object: %w", err)
	}

	*r = ResourceDescriptor(full)
	return nil
}

/*
FindTool returns the descriptor for the named tool, scoped to this server.
Lookups are always scoped by server to avoid collisions between identically
named tools on different servers.
*/
func (s *ServerConfig) FindTool(name string) (ToolDescriptor, bool) {
	for _, tool := range s.Tools {
		if tool.Name == name {
			return tool, true
		}
	}

	return ToolDescriptor{}, false
}
