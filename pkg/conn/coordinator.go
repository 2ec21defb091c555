package conn

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/machinewire/mcpchat/pkg/bridge"
	"github.com/machinewire/mcpchat/pkg/errors"
)

/*
ServerSource is what the coordinator needs from the registry: which servers
are currently enabled. Defined here so the packages stay decoupled.
*/
type ServerSource interface {
	EnabledServers() []string
}

/*
Backend is the remote half of connection management. Note the asymmetry:
there is a connect call but no disconnect call, because the transport does
not expose one.
*/
type Backend interface {
	Connect(ctx context.Context, server string) (bridge.ConnectResult, error)
	ConnectAll(ctx context.Context) (bridge.ConnectAllResult, error)
}

/*
ConnectOutcome reports one single-server connect attempt.
*/
type ConnectOutcome struct {
	AlreadyConnected bool
	Message          string
}

/*
BatchResult summarizes a connect-all. A partial success is still an overall
success as long as the batch call completed; NewlyConnected carries the
per-server detail for targeted messaging.
*/
type BatchResult struct {
	Success        bool
	Message        string
	NewlyConnected []string
}

/*
Coordinator converts desired state (enabled servers) into actual remote
connections. The connected set is the single source of truth for connection
state: a name is a member only if the most recent attempt succeeded and no
disable or disconnect happened since.
*/
type Coordinator struct {
	mu        sync.RWMutex
	connected map[string]struct{}
	backend   Backend
	source    ServerSource
}

func NewCoordinator(backend Backend, source ServerSource) *Coordinator {
	return &Coordinator{
		connected: make(map[string]struct{}),
		backend:   backend,
		source:    source,
	}
}

/*
ConnectOne issues a single remote connect for the named server. Already
connected is a no-op success. A remote rejection surfaces the backend's
reason verbatim and leaves the connected set untouched; the caller decides
whether to retry.
*/
func (c *Coordinator) ConnectOne(ctx context.Context, name string) (ConnectOutcome, error) {
	if c.IsConnected(name) {
		return ConnectOutcome{AlreadyConnected: true}, nil
	}

	result, err := c.backend.Connect(ctx, name)
	if err != nil {
		return ConnectOutcome{}, errors.ErrConnectionFailed.WithMessagef(
			"connecting to %s: %v", name, err,
		)
	}

	if !result.Success {
		return ConnectOutcome{}, errors.ErrConnectionFailed.WithMessagef(
			"%s", result.Message,
		)
	}

	c.mu.Lock()
	c.connected[name] = struct{}{}
	c.mu.Unlock()

	log.Info("connected to server", "server", name)
	return ConnectOutcome{Message: result.Message}, nil
}

/*
ConnectAll attempts to connect every enabled, not-yet-connected server as
one remote batch. The merge into the connected set happens in one critical
section so observers never see a half-updated set.
*/
func (c *Coordinator) ConnectAll(ctx context.Context) (BatchResult, error) {
	enabled := make(map[string]struct{})
	pending := false

	for _, name := range c.source.EnabledServers() {
		enabled[name] = struct{}{}
		if !c.IsConnected(name) {
			pending = true
		}
	}

	if !pending {
		return BatchResult{Success: true, Message: "all enabled servers already connected"}, nil
	}

	result, err := c.backend.ConnectAll(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	newly := make([]string, 0, len(result.Servers))

	c.mu.Lock()
	for _, name := range result.Servers {
		// The backend may report servers this client has since disabled;
		// those never enter the connected set.
		if _, ok := enabled[name]; !ok {
			continue
		}

		if _, ok := c.connected[name]; !ok {
			newly = append(newly, name)
		}

		c.connected[name] = struct{}{}
	}
	c.mu.Unlock()

	log.Info("batch connect finished", "newly_connected", len(newly))

	return BatchResult{
		Success:        result.Success,
		Message:        result.Message,
		NewlyConnected: newly,
	}, nil
}

/*
IsConnected is a pure membership test with no remote call.
*/
func (c *Coordinator) IsConnected(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.connected[name]
	return ok
}

/*
Disconnect removes the server from the connected set. This is purely local
bookkeeping and does not reflect remote truth: the backend keeps whatever
process it spawned, there is simply no remote call to tear it down.
*/
func (c *Coordinator) Disconnect(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.connected, name)
}

/*
ConnectedServers returns a snapshot of the connected set.
*/
func (c *Coordinator) ConnectedServers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.connected))
	for name := range c.connected {
		names = append(names, name)
	}

	return names
}
