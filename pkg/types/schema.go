package types

/*
SchemaNode is a recursive, JSON-schema-like descriptor for a tool's input.
It is used only to derive input forms and to coerce raw form values into
typed arguments before a tool call; it is never executed.
*/
type SchemaNode struct {
	Type        string                 `json:"type,omitempty"`
	Properties  map[string]*SchemaNode `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []any                  `json:"enum,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	Description string                 `json:"description,omitempty"`
}

// Schema value types understood by the form layer.
const (
	SchemaBoolean = "boolean"
	SchemaNumber  = "number"
	SchemaInteger = "integer"
	SchemaString  = "string"
	SchemaObject  = "object"
	SchemaArray   = "array"
)

/*
IsRequired reports whether the named property appears in the node's required
set.
*/
func (n *SchemaNode) IsRequired(name string) bool {
	for _, req := range n.Required {
		if req == name {
			return true
		}
	}

	return false
}
