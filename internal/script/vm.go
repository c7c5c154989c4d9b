package script

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/rakunlabs/sshwarma/internal/render"
	"github.com/rakunlabs/sshwarma/internal/statustrack"
)

// setupHostEnv binds every host function spec.md's script runtime
// names onto vm, generalizing the teacher's SetupGojaVM/registerGojaHelpers
// idiom (internal/service/workflow/goja.go) from workflow-node
// sandboxing to session HUD scripting.
func setupHostEnv(vm *goja.Runtime, host Host) error {
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"toString":       jsToString(vm),
		"jsonParse":      jsJSONParse(vm),
		"btoa":           jsBtoa(vm),
		"atob":           jsAtob(vm),
		"JSON_stringify": jsJSONStringify(vm),
		"new_buffer":     jsNewBuffer(vm),
		"layout":         jsLayout(vm),
		"room":           jsRoom(vm, host),
		"mcp_status":     jsMCPStatus(vm, host),
		"statuses":       jsStatuses(vm, host),
		"session_duration_seconds": jsSessionDuration(vm, host),
		"tool_cache_get": jsToolCacheGet(vm, host),
		"tool_cache_set": jsToolCacheSet(vm, host),
		"mark":           jsMark(vm, host),
		"mark_many":      jsMarkMany(vm, host),
		"register_tool":  jsRegisterTool(vm, host),
	} {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("bind host function %q: %w", name, err)
		}
	}
	return nil
}

func jsToString(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue("")
		}
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			return vm.ToValue(string(v))
		case string:
			return vm.ToValue(v)
		default:
			return vm.ToValue(fmt.Sprintf("%v", v))
		}
	}
}

func jsJSONParse(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		var raw []byte
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			panic(vm.NewTypeError("jsonParse: expected string or bytes"))
		}
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			panic(vm.NewTypeError("jsonParse: " + err.Error()))
		}
		return vm.ToValue(parsed)
	}
}

func jsBtoa(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue("")
		}
		var raw []byte
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			panic(vm.NewTypeError("btoa: expected string or bytes"))
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString(raw))
	}
}

func jsAtob(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue([]byte{})
		}
		decoded, err := base64.StdEncoding.DecodeString(call.Arguments[0].String())
		if err != nil {
			panic(vm.NewTypeError("atob: " + err.Error()))
		}
		return vm.ToValue(decoded)
	}
}

func jsJSONStringify(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue("")
		}
		data, err := json.Marshal(call.Arguments[0].Export())
		if err != nil {
			return vm.ToValue("")
		}
		return vm.ToValue(string(data))
	}
}

// jsNewBuffer exposes render.NewBuffer plus every §4.4 draw method on
// the returned object, and a nested draw-context factory, so scripts
// work entirely with plain JS objects/methods rather than a Go struct
// binding whose method set goja would otherwise expose verbatim
// (capitalized Go names read oddly from JS).
func jsNewBuffer(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		w := int(call.Argument(0).ToInteger())
		h := int(call.Argument(1).ToInteger())
		buf := render.NewBuffer(w, h)
		return bufferObject(vm, buf)
	}
}

func bufferObject(vm *goja.Runtime, buf *render.Buffer) goja.Value {
	obj := vm.NewObject()
	style := func(v goja.Value) render.Cell {
		var c render.Cell
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return c
		}
		b, err := json.Marshal(v.Export())
		if err == nil {
			_ = json.Unmarshal(b, &c)
		}
		return c
	}
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		cell := style(call.Argument(2))
		buf.Set(x, y, cell)
		return goja.Undefined()
	})
	_ = obj.Set("fill", func(call goja.FunctionCall) goja.Value {
		x, y, w, h := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		buf.Fill(x, y, w, h, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("print", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		s := call.Argument(2).String()
		n := buf.Print(x, y, s, style(call.Argument(3)))
		return vm.ToValue(n)
	})
	_ = obj.Set("hline", func(call goja.FunctionCall) goja.Value {
		x, y, w := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		ch := []rune(call.Argument(3).String())
		var r rune
		if len(ch) > 0 {
			r = ch[0]
		}
		buf.HLine(x, y, w, r, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("vline", func(call goja.FunctionCall) goja.Value {
		x, y, h := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		ch := []rune(call.Argument(3).String())
		var r rune
		if len(ch) > 0 {
			r = ch[0]
		}
		buf.VLine(x, y, h, r, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("draw_box", func(call goja.FunctionCall) goja.Value {
		x, y, w, h := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		buf.DrawBox(x, y, w, h, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("gauge", func(call goja.FunctionCall) goja.Value {
		x, y, w := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		v := call.Argument(3).ToFloat()
		buf.Gauge(x, y, w, v, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("sparkline", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		var values []float64
		if arr, ok := call.Argument(2).Export().([]any); ok {
			for _, v := range arr {
				if f, ok := v.(float64); ok {
					values = append(values, f)
				}
			}
		}
		buf.Sparkline(x, y, values, style(call.Argument(3)))
		return goja.Undefined()
	})
	_ = obj.Set("meter", func(call goja.FunctionCall) goja.Value {
		x, y, w := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		v := call.Argument(3).ToFloat()
		buf.Meter(x, y, w, v, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("serialize_ansi", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(render.SerializeANSI(buf))
	})
	_ = obj.Set("draw_context", func(call goja.FunctionCall) goja.Value {
		return drawContextObject(vm, render.NewDrawContext(buf))
	})
	return obj
}

func drawContextObject(vm *goja.Runtime, ctx *render.DrawContext) goja.Value {
	obj := vm.NewObject()
	style := func(v goja.Value) render.Cell {
		var c render.Cell
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return c
		}
		b, err := json.Marshal(v.Export())
		if err == nil {
			_ = json.Unmarshal(b, &c)
		}
		return c
	}
	_ = obj.Set("width", func(call goja.FunctionCall) goja.Value { return vm.ToValue(ctx.Width()) })
	_ = obj.Set("height", func(call goja.FunctionCall) goja.Value { return vm.ToValue(ctx.Height()) })
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		ctx.Set(x, y, style(call.Argument(2)))
		return goja.Undefined()
	})
	_ = obj.Set("fill", func(call goja.FunctionCall) goja.Value {
		x, y, w, h := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		ctx.Fill(x, y, w, h, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("print", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		n := ctx.Print(x, y, call.Argument(2).String(), style(call.Argument(3)))
		return vm.ToValue(n)
	})
	_ = obj.Set("hline", func(call goja.FunctionCall) goja.Value {
		x, y, w := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		ch := []rune(call.Argument(3).String())
		var r rune
		if len(ch) > 0 {
			r = ch[0]
		}
		ctx.HLine(x, y, w, r, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("vline", func(call goja.FunctionCall) goja.Value {
		x, y, h := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		ch := []rune(call.Argument(3).String())
		var r rune
		if len(ch) > 0 {
			r = ch[0]
		}
		ctx.VLine(x, y, h, r, style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("gauge", func(call goja.FunctionCall) goja.Value {
		x, y, w := argInt(call, 0), argInt(call, 1), argInt(call, 2)
		ctx.Gauge(x, y, w, call.Argument(3).ToFloat(), style(call.Argument(4)))
		return goja.Undefined()
	})
	_ = obj.Set("sub", func(call goja.FunctionCall) goja.Value {
		x, y, w, h := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		return drawContextObject(vm, ctx.Sub(x, y, w, h))
	})
	return obj
}

func argInt(call goja.FunctionCall, idx int) int {
	return int(call.Argument(idx).ToInteger())
}

// jsLayout implements layout(defs, cols, rows) -> {name: Area}.
func jsLayout(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		rawDefs, _ := call.Argument(0).Export().([]any)
		cols := int(call.Argument(1).ToInteger())
		rows := int(call.Argument(2).ToInteger())

		defs := make([]*render.RegionDef, 0, len(rawDefs))
		for _, raw := range rawDefs {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			def := &render.RegionDef{Name: fmt.Sprintf("%v", m["name"])}
			setConstraint := func(key string, dst **render.Constraint) {
				v, ok := m[key]
				if !ok {
					return
				}
				c, ok := render.ParseConstraint(v)
				if !ok {
					return
				}
				*dst = &c
			}
			setConstraint("top", &def.Top)
			setConstraint("bottom", &def.Bottom)
			setConstraint("left", &def.Left)
			setConstraint("right", &def.Right)
			setConstraint("width", &def.Width)
			setConstraint("height", &def.Height)
			if fill, ok := m["fill"].(bool); ok {
				def.Fill = fill
			}
			defs = append(defs, def)
		}

		resolved := render.ResolveLayout(defs, render.Full(cols, rows))
		out := vm.NewObject()
		for _, name := range resolved.Names() {
			rect, _ := resolved.Get(name)
			_ = out.Set(name, areaObject(vm, render.Area{Rect: rect, Name: name}))
		}
		return out
	}
}

// areaObject mirrors render.Area's method set as a plain JS object,
// threading through Sub/Shrink/SplitVertical/SplitHorizontal as new
// area objects so scripts can compose layouts without a Go binding.
func areaObject(vm *goja.Runtime, a render.Area) goja.Value {
	obj := vm.NewObject()
	_ = obj.Set("x", a.X())
	_ = obj.Set("y", a.Y())
	_ = obj.Set("w", a.W())
	_ = obj.Set("h", a.H())
	_ = obj.Set("right", a.Right())
	_ = obj.Set("bottom", a.Bottom())
	_ = obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		x, y := int(call.Argument(0).ToInteger()), int(call.Argument(1).ToInteger())
		return vm.ToValue(a.Contains(x, y))
	})
	_ = obj.Set("sub", func(call goja.FunctionCall) goja.Value {
		x, y, w, h := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		return areaObject(vm, a.Sub(x, y, w, h))
	})
	_ = obj.Set("shrink", func(call goja.FunctionCall) goja.Value {
		top, right, bottom, left := argInt(call, 0), argInt(call, 1), argInt(call, 2), argInt(call, 3)
		return areaObject(vm, a.Shrink(top, right, bottom, left))
	})
	_ = obj.Set("shrink_uniform", func(call goja.FunctionCall) goja.Value {
		n := int(call.Argument(0).ToInteger())
		return areaObject(vm, a.ShrinkUniform(n))
	})
	_ = obj.Set("split_vertical", func(call goja.FunctionCall) goja.Value {
		top, bottom := a.SplitVertical(int(call.Argument(0).ToInteger()))
		return vm.ToValue([]goja.Value{areaObject(vm, top), areaObject(vm, bottom)})
	})
	_ = obj.Set("split_horizontal", func(call goja.FunctionCall) goja.Value {
		left, right := a.SplitHorizontal(int(call.Argument(0).ToInteger()))
		return vm.ToValue([]goja.Value{areaObject(vm, left), areaObject(vm, right)})
	})
	return obj
}

func jsRoom(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(host.Room())
	}
}

func jsMCPStatus(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		statuses := host.MCPStatus()
		out := make([]map[string]any, 0, len(statuses))
		for _, s := range statuses {
			lastErr := ""
			if s.LastError != nil {
				lastErr = s.LastError.Error()
			}
			out = append(out, map[string]any{
				"name":       s.Name,
				"endpoint":   s.Endpoint,
				"state":      s.State.String(),
				"tool_count": s.ToolCount,
				"call_count": s.CallCount,
				"last_tool":  s.LastTool,
				"attempt":    s.Attempt,
				"last_error": lastErr,
			})
		}
		return vm.ToValue(out)
	}
}

func jsStatuses(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		snap := host.Statuses()
		out := make(map[string]statustrack.ParticipantStatus, len(snap))
		for k, v := range snap {
			out[k] = v
		}
		return vm.ToValue(out)
	}
}

func jsSessionDuration(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(host.SessionDuration().Seconds())
	}
}

func jsToolCacheGet(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		entry, ok := host.ToolCache().Get(key)
		if !ok {
			return goja.Null()
		}
		var parsed any
		if err := json.Unmarshal(entry.Value, &parsed); err != nil {
			return goja.Null()
		}
		return vm.ToValue(map[string]any{"value": parsed, "fetched_at": entry.FetchedAt.Unix()})
	}
}

func jsToolCacheSet(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		data, err := json.Marshal(call.Argument(1).Export())
		if err != nil {
			panic(vm.NewTypeError("tool_cache_set: " + err.Error()))
		}
		host.ToolCache().Set(key, data, time.Now())
		return goja.Undefined()
	}
}

func jsMark(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		host.DirtyTags().Mark(call.Argument(0).String())
		return goja.Undefined()
	}
}

func jsMarkMany(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		tags, _ := call.Argument(0).Export().([]any)
		for _, t := range tags {
			host.DirtyTags().Mark(fmt.Sprintf("%v", t))
		}
		return goja.Undefined()
	}
}

// jsRegisterTool implements MCP tool registration: a script spawns a
// tool definition into the session's tool catalog, callable by any
// joined model exactly like an MCP or command-backed tool.
func jsRegisterTool(vm *goja.Runtime, host Host) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		description := call.Argument(1).String()
		schema, err := json.Marshal(call.Argument(2).Export())
		if err != nil {
			panic(vm.NewTypeError("register_tool: " + err.Error()))
		}
		fn, ok := goja.AssertFunction(call.Argument(3))
		if !ok {
			panic(vm.NewTypeError("register_tool: fourth argument must be a function"))
		}

		host.RegisterTool(ToolDef{
			Name: name, Description: description, InputSchema: schema,
			Handler: func(args map[string]any) (result any, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("tool %q panicked: %v", name, r)
					}
				}()
				v, callErr := fn(goja.Undefined(), vm.ToValue(args))
				if callErr != nil {
					return nil, fmt.Errorf("tool %q: %w", name, callErr)
				}
				return v.Export(), nil
			},
		})
		return goja.Undefined()
	}
}
