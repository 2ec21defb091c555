package registry

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	clienterrors "github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/store"
)

const sampleConfig = `{
	"mcpServers": {
		"filesystem": {
			"tools": ["list_dir", {"name": "read_file", "description": "Read one file"}]
		},
		"web": {
			"tools": ["fetch"],
			"resources": ["docs"]
		},
		"scratch": {
			"disabled": true,
			"tools": ["note"]
		}
	}
}`

type fakeConnections struct {
	connected    map[string]bool
	disconnected []string
}

func (f *fakeConnections) IsConnected(name string) bool {
	return f.connected[name]
}

func (f *fakeConnections) Disconnect(name string) {
	delete(f.connected, name)
	f.disconnected = append(f.disconnected, name)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	t.Cleanup(func() { st.Close() })
	return New(st)
}

func TestRegistryLoad(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		reg := newTestRegistry(t)

		Convey("Load installs servers in declaration order", func() {
			So(reg.Load([]byte(sampleConfig)), ShouldBeNil)

			views := reg.Servers()
			So(views, ShouldHaveLength, 3)
			So(views[0].Name, ShouldEqual, "filesystem")
			So(views[1].Name, ShouldEqual, "web")
			So(views[2].Name, ShouldEqual, "scratch")
			So(views[2].Config.Disabled, ShouldBeTrue)
		})

		Convey("Tool declarations accept both string and object forms", func() {
			So(reg.Load([]byte(sampleConfig)), ShouldBeNil)

			config, ok := reg.Server("filesystem")
			So(ok, ShouldBeTrue)
			So(config.Tools, ShouldHaveLength, 2)
			So(config.Tools[0].Name, ShouldEqual, "list_dir")
			So(config.Tools[1].Description, ShouldEqual, "Read one file")
		})

		Convey("Invalid JSON is rejected as a config error", func() {
			err := reg.Load([]byte(`{"mcpServers": {`))

			So(err, ShouldNotBeNil)
			So(errors.Is(err, clienterrors.ErrMalformedConfig), ShouldBeTrue)
		})

		Convey("A missing mcpServers key is rejected", func() {
			err := reg.Load([]byte(`{"servers": {}}`))

			So(errors.Is(err, clienterrors.ErrMalformedConfig), ShouldBeTrue)
		})

		Convey("An empty mcpServers object is rejected", func() {
			err := reg.Load([]byte(`{"mcpServers": {}}`))

			So(errors.Is(err, clienterrors.ErrMalformedConfig), ShouldBeTrue)
		})

		Convey("A failed load retains the previous configuration untouched", func() {
			So(reg.Load([]byte(sampleConfig)), ShouldBeNil)
			So(reg.Load([]byte(`{"mcpServers": "nope"}`)), ShouldNotBeNil)

			views := reg.Servers()
			So(views, ShouldHaveLength, 3)
			So(views[0].Name, ShouldEqual, "filesystem")
		})
	})
}

func TestRegistryPersistence(t *testing.T) {
	Convey("Given a registry backed by a store", t, func() {
		st, err := store.Open(":memory:")
		So(err, ShouldBeNil)
		defer st.Close()

		reg := New(st)
		So(reg.Load([]byte(sampleConfig)), ShouldBeNil)

		Convey("A fresh registry on the same store rehydrates the configuration", func() {
			restored := New(st)
			So(restored.LoadPersisted(), ShouldBeNil)

			views := restored.Servers()
			So(views, ShouldHaveLength, 3)
			So(views[0].Name, ShouldEqual, "filesystem")
			So(views[2].Config.Disabled, ShouldBeTrue)
		})

		Convey("LoadPersisted on an empty store is a no-op", func() {
			empty, err := store.Open(":memory:")
			So(err, ShouldBeNil)
			defer empty.Close()

			fresh := New(empty)
			So(fresh.LoadPersisted(), ShouldBeNil)
			So(fresh.Servers(), ShouldBeEmpty)
		})
	})
}

func TestRegistrySetDisabled(t *testing.T) {
	Convey("Given a loaded registry with connection state", t, func() {
		reg := newTestRegistry(t)
		So(reg.Load([]byte(sampleConfig)), ShouldBeNil)

		conns := &fakeConnections{connected: map[string]bool{"web": true}}
		reg.BindConnections(conns)

		Convey("Disabling a connected server forces a logical disconnect", func() {
			So(reg.SetDisabled("web", true), ShouldBeNil)

			So(conns.disconnected, ShouldResemble, []string{"web"})
			So(reg.EnabledServers(), ShouldResemble, []string{"filesystem"})
		})

		Convey("Disabling a disconnected server only flips the flag", func() {
			So(reg.SetDisabled("filesystem", true), ShouldBeNil)

			So(conns.disconnected, ShouldBeEmpty)
		})

		Convey("Re-enabling never reconnects on its own", func() {
			So(reg.SetDisabled("web", true), ShouldBeNil)
			So(reg.SetDisabled("web", false), ShouldBeNil)

			So(conns.connected["web"], ShouldBeFalse)
			So(reg.EnabledServers(), ShouldResemble, []string{"filesystem", "web"})
		})

		Convey("An unknown server yields a not-found error", func() {
			err := reg.SetDisabled("ghost", true)

			So(errors.Is(err, clienterrors.ErrNotFound), ShouldBeTrue)
		})

		Convey("Mutations notify observers", func() {
			fired := 0
			reg.Observe(func() { fired++ })

			So(reg.SetDisabled("web", true), ShouldBeNil)
			So(fired, ShouldEqual, 1)
		})
	})
}

func TestRegistryLookups(t *testing.T) {
	Convey("Given a loaded registry", t, func() {
		reg := newTestRegistry(t)
		So(reg.Load([]byte(sampleConfig)), ShouldBeNil)

		Convey("FindToolOwner scans declared tools in declaration order", func() {
			owner, ok := reg.FindToolOwner("fetch")

			So(ok, ShouldBeTrue)
			So(owner, ShouldEqual, "web")
		})

		Convey("FindToolOwner misses tools nobody declares", func() {
			_, ok := reg.FindToolOwner("transmogrify")

			So(ok, ShouldBeFalse)
		})

		Convey("EnabledServers skips disabled servers but keeps order", func() {
			So(reg.EnabledServers(), ShouldResemble, []string{"filesystem", "web"})
		})
	})
}
