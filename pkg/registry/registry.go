package registry

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/store"
	"github.com/machinewire/mcpchat/pkg/types"
)

/*
ConnectionView is the slice of connection state the registry needs: a
membership test plus the local-only disconnect. The coordinator satisfies
it; the registry never issues remote calls itself.
*/
type ConnectionView interface {
	IsConnected(name string) bool
	Disconnect(name string)
}

/*
ServerView is the read-only projection handed to presentation code.
*/
type ServerView struct {
	Name      string
	Config    types.ServerConfig
	Connected bool
}

/*
Registry holds the declarative set of configured tool servers in their
declaration order. Configuration order is meaningful to users, so listing
never sorts.
*/
type Registry struct {
	mu          sync.RWMutex
	order       []string
	servers     map[string]*types.ServerConfig
	store       store.Store
	connections ConnectionView
	observers   []func()
}

func New(persistence store.Store) *Registry {
	return &Registry{
		servers: make(map[string]*types.ServerConfig),
		store:   persistence,
	}
}

/*
BindConnections wires the coordinator in after construction; registry and
coordinator reference each other, so one side binds late.
*/
func (r *Registry) BindConnections(view ConnectionView) {
	r.connections = view
}

/*
Observe registers a callback invoked after every successful mutation, for
re-rendering. Callbacks run on the mutating goroutine.
*/
func (r *Registry) Observe(callback func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, callback)
}

/*
Load validates and installs a configuration of the form
{"mcpServers": {name: {disabled?, tools?, resources?}}}. The replace is
atomic: on any validation failure the previous state is retained untouched.
*/
func (r *Registry) Load(raw []byte) error {
	order, servers, err := parseConfig(raw)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.order = order
	r.servers = servers
	r.mu.Unlock()

	log.Info("server configuration loaded", "servers", len(order))

	if err := r.persist(); err != nil {
		log.Error("failed to persist server configuration", "error", err)
	}

	r.notify()
	return nil
}

/*
LoadPersisted restores the last successfully loaded configuration from the
local store, if any.
*/
func (r *Registry) LoadPersisted() error {
	raw, ok, err := r.store.Get(store.KeyServerConfig)
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	return r.Load([]byte(raw))
}

/*
SetDisabled flips a server's disabled flag. Disabling a connected server
forces a logical disconnect immediately: the transport has no disconnect
primitive, so the connected set is the only thing that changes. Re-enabling
never reconnects automatically.
*/
func (r *Registry) SetDisabled(name string, disabled bool) error {
	r.mu.Lock()

	server, ok := r.servers[name]
	if !ok {
		r.mu.Unlock()
		return errors.ErrNotFound.WithMessagef("unknown server: %s", name)
	}

	server.Disabled = disabled
	r.mu.Unlock()

	if disabled && r.connections != nil && r.connections.IsConnected(name) {
		r.connections.Disconnect(name)
		log.Info("server disabled, logically disconnected", "server", name)
	}

	if err := r.persist(); err != nil {
		log.Error("failed to persist server configuration", "error", err)
	}

	r.notify()
	return nil
}

/*
Servers returns every configured server in declaration order together with
its current connect state.
*/
func (r *Registry) Servers() []ServerView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]ServerView, 0, len(r.order))

	for _, name := range r.order {
		connected := false
		if r.connections != nil {
			connected = r.connections.IsConnected(name)
		}

		views = append(views, ServerView{
			Name:      name,
			Config:    *r.servers[name],
			Connected: connected,
		})
	}

	return views
}

/*
Server returns one server's configuration by name.
*/
func (r *Registry) Server(name string) (types.ServerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	server, ok := r.servers[name]
	if !ok {
		return types.ServerConfig{}, false
	}

	return *server, true
}

/*
EnabledServers lists the names of all servers with disabled == false, in
declaration order.
*/
func (r *Registry) EnabledServers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))

	for _, name := range r.order {
		if !r.servers[name].Disabled {
			names = append(names, name)
		}
	}

	return names
}

/*
FindToolOwner resolves a bare tool name to its owning server by scanning
the declared tool lists in declaration order. The first match wins.
*/
func (r *Registry) FindToolOwner(tool string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if _, ok := r.servers[name].FindTool(tool); ok {
			return name, true
		}
	}

	return "", false
}

func (r *Registry) notify() {
	r.mu.RLock()
	observers := make([]func(), len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, observer := range observers {
		observer()
	}
}

/*
persist re-serializes the current configuration, preserving declaration
order, and writes it through the store so a reload sees the same servers.
*/
func (r *Registry) persist() error {
	r.mu.RLock()
	raw, err := marshalConfig(r.order, r.servers)
	r.mu.RUnlock()

	if err != nil {
		return err
	}

	return r.store.Set(store.KeyServerConfig, string(raw))
}

/*
parseConfig decodes the configuration while recording the declaration order
of the mcpServers object, which encoding/json maps would otherwise lose.
*/
func parseConfig(raw []byte) ([]string, map[string]*types.ServerConfig, error) {
	var envelope struct {
		MCPServers json.RawMessage `json:"mcpServers"`
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, errors.ErrMalformedConfig.WithMessagef("configuration is not valid JSON: %v", err)
	}

	if len(envelope.MCPServers) == 0 {
		return nil, nil, errors.ErrMalformedConfig.WithMessagef("configuration is missing mcpServers")
	}

	decoder := json.NewDecoder(bytes.NewReader(envelope.MCPServers))

	token, err := decoder.Token()
	if err != nil || token != json.Delim('{') {
		return nil, nil, errors.ErrMalformedConfig.WithMessagef("mcpServers must be an object")
	}

	order := make([]string, 0)
	servers := make(map[string]*types.ServerConfig)

	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, nil, errors.ErrMalformedConfig.WithMessagef("reading server name: %v", err)
		}

		name, ok := keyToken.(string)
		if !ok {
			return nil, nil, errors.ErrMalformedConfig.WithMessagef("server name is not a string")
		}

		var config types.ServerConfig
		if err := decoder.Decode(&config); err != nil {
			return nil, nil, errors.ErrMalformedConfig.WithMessagef("server %s: %v", name, err)
		}

		config.Name = name
		order = append(order, name)
		servers[name] = &config
	}

	if len(order) == 0 {
		return nil, nil, errors.ErrMalformedConfig.WithMessagef("mcpServers declares no servers")
	}

	return order, servers, nil
}

func marshalConfig(order []string, servers map[string]*types.ServerConfig) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteString(`{"mcpServers":{`)

	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		// The map key already carries the name; keep the persisted shape
		// identical to the input format.
		config := *servers[name]
		config.Name = ""

		value, err := json.Marshal(&config)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteString("}}")
	return buf.Bytes(), nil
}
