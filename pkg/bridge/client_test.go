package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	clienterrors "github.com/machinewire/mcpchat/pkg/errors"
	"github.com/machinewire/mcpchat/pkg/types"
)

type mockBackend struct {
	*httptest.Server
	mux      *http.ServeMux
	requests []string
}

func newMockBackend() *mockBackend {
	mux := http.NewServeMux()
	mock := &mockBackend{mux: mux}

	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.requests = append(mock.requests, r.Method+" "+r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	mock.Server = httptest.NewServer(wrapped)
	return mock
}

func (m *mockBackend) handle(pattern string, status int, body any) {
	m.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

func TestClient(t *testing.T) {
	Convey("Given a backend client", t, func() {
		backend := newMockBackend()
		defer backend.Close()

		client := NewClient(backend.URL)

		Convey("Providers decodes the provider list", func() {
			backend.handle("/api/providers", http.StatusOK, map[string]any{
				"providers": []map[string]any{
					{"id": "openai", "name": "OpenAI", "available": true},
					{"id": "anthropic", "name": "Anthropic", "available": false},
				},
			})

			providers, err := client.Providers(context.Background())

			So(err, ShouldBeNil)
			So(providers, ShouldHaveLength, 2)
			So(providers[0].ID, ShouldEqual, "openai")
			So(providers[1].Available, ShouldBeFalse)
		})

		Convey("Models escapes the key into the query", func() {
			backend.handle("/api/models/openai", http.StatusOK, map[string]any{
				"models": []map[string]string{{"id": "gpt-4o", "name": "GPT-4o"}},
			})

			models, err := client.Models(context.Background(), "openai", "sk-test")

			So(err, ShouldBeNil)
			So(models, ShouldHaveLength, 1)
			So(models[0].ID, ShouldEqual, "gpt-4o")
		})

		Convey("Connect posts the server name", func() {
			backend.handle("/api/mcp/connect", http.StatusOK, map[string]any{
				"success": true, "message": "Connected to fs",
			})

			result, err := client.Connect(context.Background(), "fs")

			So(err, ShouldBeNil)
			So(result.Success, ShouldBeTrue)
			So(result.Message, ShouldEqual, "Connected to fs")
		})

		Convey("ConnectAll returns the connected server names", func() {
			backend.handle("/api/mcp/connect-all", http.StatusOK, map[string]any{
				"success": true,
				"message": "Connected to all enabled servers",
				"servers": []string{"fs", "web"},
			})

			result, err := client.ConnectAll(context.Background())

			So(err, ShouldBeNil)
			So(result.Servers, ShouldResemble, []string{"fs", "web"})
		})

		Convey("Process decodes a step sequence", func() {
			backend.handle("/api/mcp/ai_process", http.StatusOK, map[string]any{
				"success":  true,
				"response": "done",
				"steps": []map[string]any{
					{"type": "tool_call", "tool": "fs_list_dir", "args": map[string]any{}},
					{"type": "tool_result", "content": "[a.txt]"},
					{"type": "response", "content": "done"},
				},
			})

			result, err := client.Process(context.Background(), "list files")

			So(err, ShouldBeNil)
			So(result.Steps, ShouldHaveLength, 3)
			So(result.Steps[0].Type, ShouldEqual, types.StepToolCall)
			So(result.Steps[0].Tool, ShouldEqual, "fs_list_dir")
		})

		Convey("A non-2xx status surfaces the backend's error message verbatim", func() {
			backend.handle("/api/mcp/call_tool", http.StatusBadRequest, map[string]any{
				"error": "Failed to connect to server fs",
			})

			_, err := client.CallTool(context.Background(), "fs", "list_dir", nil)

			So(err, ShouldNotBeNil)
			So(errors.Is(err, clienterrors.ErrRemote), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "Failed to connect to server fs")
		})

		Convey("An unreachable backend maps to a RemoteError", func() {
			dead := NewClient("http://127.0.0.1:1")

			_, err := dead.Providers(context.Background())

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "backend unreachable")
		})
	})
}
