package mcpmanager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newFakeServer returns an httptest.Server speaking just enough MCP
// JSON-RPC to exercise the manager: initialize, tools/list with one
// "echo" tool, and tools/call echoing its args back as text.
func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int32           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Session-ID", "fake-session")
		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case "initialize":
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"result": map[string]any{"protocolVersion": "2024-11-05"},
			})
		case "tools/list":
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"result": map[string]any{
					"tools": []map[string]any{
						{"name": "echo", "description": "echoes input"},
					},
				},
			})
		case "tools/call":
			json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"result": map[string]any{
					"content": []map[string]any{{"type": "text", "text": "ok"}},
				},
			})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	return httptest.NewServer(mux)
}

func TestAddReachesConnectedAndListsTools(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	m := New(nil)
	m.Add("h", srv.URL)
	defer m.Remove("h")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.WaitForConnected(ctx, "h", 2*time.Second); err != nil {
		t.Fatalf("WaitForConnected: %v", err)
	}

	st, ok := m.Status("h")
	if !ok || st.State != StateConnected {
		t.Fatalf("Status = %+v, ok=%v, want Connected", st, ok)
	}
	if st.ToolCount != 1 {
		t.Fatalf("ToolCount = %d, want 1", st.ToolCount)
	}

	result, _, err := m.CallTool(ctx, "echo", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "ok" {
		t.Fatalf("CallTool result = %+v", result)
	}

	st, _ = m.Status("h")
	if st.CallCount != 1 || st.LastTool != "echo" {
		t.Fatalf("after call: CallCount=%d LastTool=%q", st.CallCount, st.LastTool)
	}
}

// TestPropertyAddRemoveEventuallyConsistent covers Property invariant 6:
// for any add(name, endpoint); remove(name) sequence, list() ultimately
// reports no entry named name and the subscribed receiver sees Removed.
func TestPropertyAddRemoveEventuallyConsistent(t *testing.T) {
	srv := newFakeServer(t)
	defer srv.Close()

	m := New(nil)
	sub := m.Subscribe()
	defer sub.Close()

	m.Add("h", srv.URL)
	m.Remove("h")

	for _, name := range m.List() {
		if name.Name == "h" {
			t.Fatalf("list() still reports %q after remove", "h")
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Kind == EventRemoved && ev.Name == "h" {
				return
			}
		case <-deadline:
			t.Fatal("did not observe Removed{h} event")
		}
	}
}

// TestScenarioS6ReconnectBroadcast drives the literal S6 scenario:
// subscribe, add("h", bad_url) against an unreachable listener,
// observe Connecting then Reconnecting events, then remove("h") and
// observe Removed.
func TestScenarioS6ReconnectBroadcast(t *testing.T) {
	// Take a local address from an unstarted server, then close its
	// listener so every connection attempt to that address is refused
	// and the manager keeps retrying.
	unstarted := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	badURL := "http://" + unstarted.Listener.Addr().String()
	unstarted.Listener.Close()

	m := New(nil)
	sub := m.Subscribe()
	defer sub.Close()

	m.Add("h", badURL)
	defer m.Remove("h")

	sawConnecting := false
	sawReconnecting := false
	deadline := time.After(3 * time.Second)
drain:
	for {
		select {
		case ev := <-sub.C:
			switch ev.Kind {
			case EventConnecting:
				if ev.Name == "h" && ev.Endpoint == badURL {
					sawConnecting = true
				}
			case EventReconnecting:
				if ev.Name == "h" {
					sawReconnecting = true
					break drain
				}
			}
		case <-deadline:
			t.Fatal("did not observe Connecting then Reconnecting within deadline")
		}
	}
	if !sawConnecting || !sawReconnecting {
		t.Fatalf("sawConnecting=%v sawReconnecting=%v", sawConnecting, sawReconnecting)
	}

	m.Remove("h")
	unstarted.Close()

	removedDeadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Kind == EventRemoved && ev.Name == "h" {
				return
			}
		case <-removedDeadline:
			t.Fatal("did not observe Removed{h} after remove")
		}
	}
}
