package script

import (
	"testing"

	"github.com/dop251/goja"
)

func newTestVM(t *testing.T, host Host) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	if err := setupHostEnv(vm, host); err != nil {
		t.Fatalf("setupHostEnv: %v", err)
	}
	return vm
}

func TestJSONRoundTripHelpers(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`JSON_stringify(jsonParse('{"a":1}'))`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.String(); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestBtoaAtobRoundTrip(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`toString(atob(btoa("hello")))`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.String(); got != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestRoomReturnsHostSnapshot(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`room().name`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.String(); got != "lobby" {
		t.Fatalf("got %q, want lobby", got)
	}
}

func TestBufferPrintAndSerialize(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`
		var buf = new_buffer(5, 1);
		buf.print(0, 0, "hi", {});
		buf.serialize_ansi();
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	got := v.String()
	if got != "hi   " {
		t.Fatalf("got %q, want %q", got, "hi   ")
	}
}

func TestLayoutProducesNamedAreas(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`
		var l = layout([
			{name: "header", top: 0, height: 2},
			{name: "body", fill: true}
		], 20, 10);
		l.header.h + "," + l.body.y;
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.String(); got != "2,2" {
		t.Fatalf("got %q, want 2,2", got)
	}
}

func TestAreaSplitVertical(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`
		var l = layout([{name: "main"}], 10, 10);
		var parts = l.main.split_vertical(4);
		parts[0].h + "," + parts[1].h;
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.String(); got != "4,6" {
		t.Fatalf("got %q, want 4,6", got)
	}
}

func TestToolCacheSetThenGet(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`
		tool_cache_set("weather", {temp: 72});
		tool_cache_get("weather").value.temp;
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got := v.ToInteger(); got != 72 {
		t.Fatalf("got %v, want 72", got)
	}
}

func TestToolCacheGetMissingReturnsNull(t *testing.T) {
	vm := newTestVM(t, newFakeHost())
	v, err := vm.RunString(`tool_cache_get("nope")`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if !goja.IsNull(v) {
		t.Fatalf("got %v, want null", v)
	}
}

func TestMarkSignalsDirtySet(t *testing.T) {
	host := newFakeHost()
	vm := newTestVM(t, host)
	if _, err := vm.RunString(`mark("header")`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	tags := host.dirty.Take()
	if len(tags) != 1 || tags[0] != "header" {
		t.Fatalf("tags = %v, want [header]", tags)
	}
}

func TestMarkManySignalsMultipleTags(t *testing.T) {
	host := newFakeHost()
	vm := newTestVM(t, host)
	if _, err := vm.RunString(`mark_many(["a", "b"])`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	tags := host.dirty.Take()
	if len(tags) != 2 {
		t.Fatalf("tags = %v, want 2 entries", tags)
	}
}

func TestRegisterToolInvokesJSHandler(t *testing.T) {
	host := newFakeHost()
	vm := newTestVM(t, host)
	if _, err := vm.RunString(`
		register_tool("echo", "echoes back", {}, function(args) {
			return args.value + "!";
		});
	`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if len(host.registered) != 1 {
		t.Fatalf("registered = %d tools, want 1", len(host.registered))
	}
	result, err := host.registered[0].Handler(map[string]any{"value": "hi"})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if result != "hi!" {
		t.Fatalf("result = %v, want hi!", result)
	}
}

func TestRegisterToolHandlerReturnsThrownErrorAsError(t *testing.T) {
	host := newFakeHost()
	vm := newTestVM(t, host)
	if _, err := vm.RunString(`
		register_tool("boom", "always fails", {}, function(args) {
			throw new Error("kaboom");
		});
	`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	_, err := host.registered[0].Handler(map[string]any{})
	if err == nil {
		t.Fatalf("expected error from thrown JS exception")
	}
}
