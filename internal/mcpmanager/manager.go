package mcpmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rakunlabs/sshwarma/internal/broadcast"
)

type connection struct {
	mu        sync.RWMutex
	endpoint  string
	state     State
	client    *Client
	tools     []Tool
	callCount uint64
	lastTool  string
	attempt   uint32
	lastErr   error

	cancel context.CancelFunc
}

func (c *connection) snapshot(name string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Name:      name,
		Endpoint:  c.endpoint,
		State:     c.state,
		ToolCount: len(c.tools),
		CallCount: atomic.LoadUint64(&c.callCount),
		LastTool:  c.lastTool,
		Attempt:   c.attempt,
		LastError: c.lastErr,
	}
}

// Manager is the non-blocking MCP control plane: Add/Remove/Status/
// List/RefreshTools never wait on network I/O; each managed connection
// runs its own connectionLoop goroutine that owns the actual HTTP
// session and reconnect backoff.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*connection
	bus   *broadcast.Bus[Event]
	log   *slog.Logger
}

// New returns an empty Manager. log may be nil, in which case
// slog.Default() is used.
func New(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		conns: make(map[string]*connection),
		bus:   broadcast.New[Event](broadcast.DefaultCapacity),
		log:   log,
	}
}

// Subscribe returns a live subscription to the manager's event stream.
func (m *Manager) Subscribe() *broadcast.Subscription[Event] {
	return m.bus.Subscribe()
}

// Add registers name→endpoint and spawns its connection loop. If the
// pair is already present, it is a no-op. If name is present with a
// different endpoint, the old task is cancelled and superseded.
func (m *Manager) Add(name, endpoint string) {
	m.mu.Lock()
	if existing, ok := m.conns[name]; ok {
		existing.mu.RLock()
		sameEndpoint := existing.endpoint == endpoint
		existing.mu.RUnlock()
		if sameEndpoint {
			m.mu.Unlock()
			return
		}
		existing.cancel()
		delete(m.conns, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{endpoint: endpoint, state: StateConnecting, cancel: cancel}
	m.conns[name] = conn
	m.mu.Unlock()

	m.bus.Publish(Event{Kind: EventConnecting, Name: name, Endpoint: endpoint})
	go m.connectionLoop(ctx, name, conn)
}

// Remove cancels the connection's task, closes its live session if
// any, and emits Removed.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	conn, ok := m.conns[name]
	if ok {
		delete(m.conns, name)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	conn.cancel()

	conn.mu.Lock()
	client := conn.client
	conn.client = nil
	conn.mu.Unlock()
	if client != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		client.Close(closeCtx)
		closeCancel()
	}

	m.bus.Publish(Event{Kind: EventRemoved, Name: name})
}

// Status returns a point-in-time snapshot for name, or false if absent.
func (m *Manager) Status(name string) (Status, bool) {
	m.mu.RLock()
	conn, ok := m.conns[name]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	return conn.snapshot(name), true
}

// List returns a snapshot of every managed connection.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.conns))
	for name, conn := range m.conns {
		out = append(out, conn.snapshot(name))
	}
	return out
}

// RefreshTools asynchronously re-lists tools from the upstream server
// and updates the cache, emitting ToolsRefreshed on success.
func (m *Manager) RefreshTools(name string) {
	m.mu.RLock()
	conn, ok := m.conns[name]
	m.mu.RUnlock()
	if !ok {
		return
	}
	go func() {
		conn.mu.RLock()
		client := conn.client
		connected := conn.state == StateConnected
		conn.mu.RUnlock()
		if !connected || client == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tools, err := client.ListTools(ctx)
		if err != nil {
			m.log.Warn("mcp refresh_tools failed", "name", name, "error", err)
			return
		}
		conn.mu.Lock()
		conn.tools = tools
		conn.mu.Unlock()
		m.bus.Publish(Event{Kind: EventToolsRefreshed, Name: name, ToolCount: len(tools)})
	}()
}

// ListTools flattens the tools of every connected connection, paired
// with the connection name that advertises them.
func (m *Manager) ListTools() map[string][]Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]Tool)
	for name, conn := range m.conns {
		conn.mu.RLock()
		if conn.state == StateConnected {
			out[name] = append([]Tool(nil), conn.tools...)
		}
		conn.mu.RUnlock()
	}
	return out
}

// CallTool resolves name to the first Connected connection advertising
// a tool of that name (iteration order over the live map, per the
// "first found" ambiguity resolution), submits the call, and records
// call_count/last_tool bookkeeping. It returns the call result and the
// name of the connection that served it.
func (m *Manager) CallTool(ctx context.Context, toolName string, args map[string]any) (CallToolResult, string, error) {
	m.mu.RLock()
	var target *connection
	var sourceName string
	for name, conn := range m.conns {
		conn.mu.RLock()
		if conn.state != StateConnected {
			conn.mu.RUnlock()
			continue
		}
		for _, t := range conn.tools {
			if t.Name == toolName {
				target = conn
				sourceName = name
				break
			}
		}
		conn.mu.RUnlock()
		if target != nil {
			break
		}
	}
	m.mu.RUnlock()

	if target == nil {
		return CallToolResult{}, "", fmt.Errorf("mcp: no connected source advertises tool %q", toolName)
	}

	target.mu.RLock()
	client := target.client
	target.mu.RUnlock()
	if client == nil {
		return CallToolResult{}, "", fmt.Errorf("mcp: connection %q has no live session", sourceName)
	}

	result, _, err := client.CallTool(ctx, toolName, args)
	if err != nil {
		return result, sourceName, fmt.Errorf("mcp call_tool %q via %q: %w", toolName, sourceName, err)
	}

	atomic.AddUint64(&target.callCount, 1)
	target.mu.Lock()
	target.lastTool = toolName
	target.mu.Unlock()

	return result, sourceName, nil
}

// WaitForConnected polls Status until state becomes Connected or the
// deadline expires, for synchronous test clients.
func (m *Manager) WaitForConnected(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if st, ok := m.Status(name); ok && st.State == StateConnected {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("mcp: %q did not reach Connected within %s", name, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// connectionLoop owns the actual HTTP session lifecycle for one
// managed connection: connect, list tools, sit connected until
// cancellation, or back off and retry on failure. It exits only when
// ctx is cancelled (by Remove or by Add superseding this entry).
func (m *Manager) connectionLoop(ctx context.Context, name string, conn *connection) {
	bo := NewBackoff()
	for {
		if ctx.Err() != nil {
			return
		}

		conn.mu.RLock()
		endpoint := conn.endpoint
		conn.mu.RUnlock()

		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := NewClient(connectCtx, endpoint)
		connectCancel()
		if err != nil {
			delay := bo.NextDelay()
			conn.mu.Lock()
			conn.state = StateReconnecting
			conn.attempt = bo.Attempt()
			conn.lastErr = err
			conn.mu.Unlock()
			m.bus.Publish(Event{
				Kind: EventReconnecting, Name: name, Endpoint: endpoint,
				Attempt: bo.Attempt(), DelayMS: delay.Milliseconds(), Err: err,
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		tools, err := client.ListTools(ctx)
		if err != nil {
			tools = nil
		}

		bo.Reset()
		conn.mu.Lock()
		conn.client = client
		conn.tools = tools
		conn.state = StateConnected
		conn.attempt = 0
		conn.lastErr = nil
		conn.mu.Unlock()
		m.bus.Publish(Event{Kind: EventConnected, Name: name, Endpoint: endpoint, ToolCount: len(tools)})

		<-ctx.Done()
		return
	}
}
