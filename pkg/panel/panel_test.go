package panel

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/machinewire/mcpchat/pkg/bridge"
	"github.com/machinewire/mcpchat/pkg/conn"
	clienterrors "github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/types"
)

type fakeServers struct {
	configs map[string]types.ServerConfig
}

func (f *fakeServers) Server(name string) (types.ServerConfig, bool) {
	config, ok := f.configs[name]
	return config, ok
}

type fakeConns struct {
	connected       map[string]bool
	connectAttempts []string
	connectErr      error
}

func (f *fakeConns) IsConnected(name string) bool {
	return f.connected[name]
}

func (f *fakeConns) ConnectOne(_ context.Context, name string) (conn.ConnectOutcome, error) {
	f.connectAttempts = append(f.connectAttempts, name)
	if f.connectErr != nil {
		return conn.ConnectOutcome{}, f.connectErr
	}

	f.connected[name] = true
	return conn.ConnectOutcome{}, nil
}

type fakeBackend struct {
	tools      []bridge.RemoteTool
	toolsCalls int

	callResult bridge.CallToolResult
	callArgs   []map[string]any
}

func (f *fakeBackend) Tools(_ context.Context, _ string) ([]bridge.RemoteTool, error) {
	f.toolsCalls++
	return f.tools, nil
}

func (f *fakeBackend) CallTool(
	_ context.Context, _, _ string, args map[string]any,
) (bridge.CallToolResult, error) {
	f.callArgs = append(f.callArgs, args)
	return f.callResult, nil
}

func writeSchema() *types.SchemaNode {
	min := 0.0
	return &types.SchemaNode{
		Type: types.SchemaObject,
		Properties: map[string]*types.SchemaNode{
			"path":     {Type: types.SchemaString, Description: "Target path"},
			"mode":     {Type: types.SchemaString, Enum: []any{"append", "overwrite"}},
			"size":     {Type: types.SchemaInteger, Minimum: &min},
			"ratio":    {Type: types.SchemaNumber},
			"backup":   {Type: types.SchemaBoolean},
			"metadata": {Type: types.SchemaObject},
		},
		Required: []string{"path"},
	}
}

func newTestManager(schema *types.SchemaNode) (*Manager, *fakeServers, *fakeConns, *fakeBackend) {
	servers := &fakeServers{configs: map[string]types.ServerConfig{
		"fs": {
			Name: "fs",
			Tools: []types.ToolDescriptor{
				{Name: "write_file", InputSchema: schema},
			},
		},
		"off": {Name: "off", Disabled: true},
	}}
	conns := &fakeConns{connected: map[string]bool{}}
	backend := &fakeBackend{callResult: bridge.CallToolResult{Success: true, Result: "ok"}}

	return NewManager(servers, conns, backend), servers, conns, backend
}

func TestOpen(t *testing.T) {
	Convey("Given a panel manager", t, func() {
		manager, _, conns, backend := newTestManager(writeSchema())

		Convey("Opening on a disconnected server makes exactly one connect attempt", func() {
			id, err := manager.Open(context.Background(), "fs", "write_file")

			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)
			So(conns.connectAttempts, ShouldResemble, []string{"fs"})
		})

		Convey("Opening on a connected server skips the connect", func() {
			conns.connected["fs"] = true

			_, err := manager.Open(context.Background(), "fs", "write_file")

			So(err, ShouldBeNil)
			So(conns.connectAttempts, ShouldBeEmpty)
		})

		Convey("A disabled server is refused with no side effect", func() {
			_, err := manager.Open(context.Background(), "off", "write_file")

			So(errors.Is(err, clienterrors.ErrServerDisabled), ShouldBeTrue)
			So(conns.connectAttempts, ShouldBeEmpty)
			So(manager.Panels(), ShouldBeEmpty)
		})

		Convey("An unknown server is a not-found error", func() {
			_, err := manager.Open(context.Background(), "ghost", "write_file")

			So(errors.Is(err, clienterrors.ErrNotFound), ShouldBeTrue)
		})

		Convey("A failed connect aborts the open", func() {
			conns.connectErr = clienterrors.ErrConnectionFailed.WithMessagef("refused")

			_, err := manager.Open(context.Background(), "fs", "write_file")

			So(errors.Is(err, clienterrors.ErrConnectionFailed), ShouldBeTrue)
			So(manager.Panels(), ShouldBeEmpty)
		})

		Convey("The form lists required fields first, then alphabetical", func() {
			id, err := manager.Open(context.Background(), "fs", "write_file")
			So(err, ShouldBeNil)

			panel, ok := manager.Get(id)
			So(ok, ShouldBeTrue)

			names := make([]string, 0, len(panel.Fields))
			for _, field := range panel.Fields {
				names = append(names, field.Name)
			}

			So(names, ShouldResemble, []string{
				"path", "backup", "metadata", "mode", "ratio", "size",
			})
			So(panel.Fields[0].Required, ShouldBeTrue)
			So(panel.Fields[3].Enum, ShouldResemble, []any{"append", "overwrite"})
		})

		Convey("A tool without a local schema falls back to the backend's", func() {
			backend.tools = []bridge.RemoteTool{{
				Name: "delete_file",
				Schema: &types.SchemaNode{
					Type: types.SchemaObject,
					Properties: map[string]*types.SchemaNode{
						"path": {Type: types.SchemaString},
					},
				},
			}}

			id, err := manager.Open(context.Background(), "fs", "delete_file")
			So(err, ShouldBeNil)

			panel, _ := manager.Get(id)
			So(backend.toolsCalls, ShouldEqual, 1)
			So(panel.Fields, ShouldHaveLength, 1)
			So(panel.Fields[0].Name, ShouldEqual, "path")
		})

		Convey("No schema anywhere yields a single free-text field", func() {
			id, err := manager.Open(context.Background(), "fs", "mystery")
			So(err, ShouldBeNil)

			panel, _ := manager.Get(id)
			So(panel.Fields, ShouldHaveLength, 1)
			So(panel.Fields[0].Name, ShouldEqual, freeTextField)
			So(panel.Fields[0].Type, ShouldEqual, types.SchemaString)
		})
	})
}

func TestExecute(t *testing.T) {
	Convey("Given an open panel over a typed schema", t, func() {
		manager, servers, conns, backend := newTestManager(writeSchema())

		id, err := manager.Open(context.Background(), "fs", "write_file")
		So(err, ShouldBeNil)

		Convey("Values are coerced to their declared types", func() {
			So(manager.SetValue(id, "path", "/tmp/a.txt"), ShouldBeNil)
			So(manager.SetValue(id, "size", "42"), ShouldBeNil)
			So(manager.SetValue(id, "ratio", "0.5"), ShouldBeNil)
			So(manager.SetValue(id, "backup", "on"), ShouldBeNil)
			So(manager.SetValue(id, "metadata", `{"owner": "sam"}`), ShouldBeNil)

			result, err := manager.Execute(context.Background(), id)

			So(err, ShouldBeNil)
			So(result.Success, ShouldBeTrue)

			So(backend.callArgs, ShouldHaveLength, 1)
			args := backend.callArgs[0]
			So(args["path"], ShouldEqual, "/tmp/a.txt")
			So(args["size"], ShouldEqual, int64(42))
			So(args["ratio"], ShouldEqual, 0.5)
			So(args["backup"], ShouldEqual, true)
			So(args["metadata"], ShouldResemble, map[string]any{"owner": "sam"})
			// Untouched optional fields are omitted, not sent empty.
			So(args, ShouldNotContainKey, "mode")
		})

		Convey("A non-numeric value in a numeric field fails before any network call", func() {
			So(manager.SetValue(id, "size", "plenty"), ShouldBeNil)

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrInvalidNumber), ShouldBeTrue)
			So(backend.callArgs, ShouldBeEmpty)
		})

		Convey("Malformed JSON in an object field fails before any network call", func() {
			So(manager.SetValue(id, "metadata", "{nope"), ShouldBeNil)

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrInvalidJSON), ShouldBeTrue)
			So(backend.callArgs, ShouldBeEmpty)
		})

		Convey("An unchecked boolean is sent as false", func() {
			_, err := manager.Execute(context.Background(), id)

			So(err, ShouldBeNil)
			So(backend.callArgs[0]["backup"], ShouldEqual, false)
		})

		Convey("A server disabled after open is refused before any network call", func() {
			servers.configs["fs"] = types.ServerConfig{
				Name: "fs", Disabled: true,
				Tools: []types.ToolDescriptor{{Name: "write_file"}},
			}
			conns.connected["fs"] = false

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrServerDisabled), ShouldBeTrue)
			So(backend.callArgs, ShouldBeEmpty)
		})

		Convey("A server disconnected after open gets one reconnect attempt", func() {
			conns.connected["fs"] = false

			_, err := manager.Execute(context.Background(), id)

			So(err, ShouldBeNil)
			// One attempt from Open, one from Execute.
			So(conns.connectAttempts, ShouldResemble, []string{"fs", "fs"})
			So(backend.callArgs, ShouldHaveLength, 1)
		})

		Convey("A failed reconnect aborts execution", func() {
			conns.connected["fs"] = false
			conns.connectErr = clienterrors.ErrConnectionFailed.WithMessagef("refused")

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrConnectionFailed), ShouldBeTrue)
			So(backend.callArgs, ShouldBeEmpty)
		})

		Convey("A failed tool run surfaces the backend's error", func() {
			backend.callResult = bridge.CallToolResult{Success: false, Error: "disk full"}

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrRemote), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "disk full")
		})

		Convey("Setting a value on an unknown field is a not-found error", func() {
			err := manager.SetValue(id, "ghost", "value")

			So(errors.Is(err, clienterrors.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a manager with one open panel", t, func() {
		manager, _, _, _ := newTestManager(nil)

		id, err := manager.Open(context.Background(), "fs", "write_file")
		So(err, ShouldBeNil)
		So(manager.Panels(), ShouldHaveLength, 1)

		Convey("Close removes it and repeated closes are no-ops", func() {
			manager.Close(id)
			So(manager.Panels(), ShouldBeEmpty)

			manager.Close(id)
			So(manager.Panels(), ShouldBeEmpty)

			_, ok := manager.Get(id)
			So(ok, ShouldBeFalse)
		})

		Convey("Executing a closed panel is a not-found error", func() {
			manager.Close(id)

			_, err := manager.Execute(context.Background(), id)

			So(errors.Is(err, clienterrors.ErrNotFound), ShouldBeTrue)
		})
	})
}
