package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/machinewire/mcpchat/pkg/bridge"
	"github.com/machinewire/mcpchat/pkg/conn"
	"github.com/machinewire/mcpchat/pkg/engine"
	"github.com/machinewire/mcpchat/pkg/notify"
	"github.com/machinewire/mcpchat/pkg/panel"
	"github.com/machinewire/mcpchat/pkg/registry"
	"github.com/machinewire/mcpchat/pkg/store"
	"github.com/machinewire/mcpchat/pkg/transcript"
)

/*
app owns one fully wired orchestration core. Every component receives its
collaborators explicitly; there are no ambient globals below this point.
*/
type app struct {
	store       *store.SQLiteStore
	client      *bridge.Client
	registry    *registry.Registry
	coordinator *conn.Coordinator
	transcript  *transcript.Transcript
	hub         *notify.Hub
	engine      *engine.Engine
	panels      *panel.Manager
}

func newApp() (*app, error) {
	v := viper.GetViper()

	dbPath := v.GetString("storage.path")
	if !filepath.IsAbs(dbPath) {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, "."+projectName, dbPath)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	client := bridge.NewClient(
		v.GetString("backend.url"),
		bridge.WithTimeout(time.Duration(v.GetInt("backend.timeout"))*time.Second),
	)

	reg := registry.New(st)
	coordinator := conn.NewCoordinator(client, reg)
	reg.BindConnections(coordinator)

	hub := notify.NewHub()

	log := transcript.New(st)
	if err := log.Rehydrate(); err != nil {
		st.Close()
		return nil, err
	}

	// A previously loaded server configuration comes back automatically;
	// a fresh install simply starts with an empty registry.
	if err := reg.LoadPersisted(); err != nil {
		hub.Warnf("could not restore server configuration: %v", err)
	}

	return &app{
		store:       st,
		client:      client,
		registry:    reg,
		coordinator: coordinator,
		transcript:  log,
		hub:         hub,
		engine:      engine.New(client, coordinator, reg, log, hub),
		panels:      panel.NewManager(reg, coordinator, client),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
