package script

import (
	"time"

	"github.com/rakunlabs/sshwarma/internal/dirtytag"
	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/statustrack"
	"github.com/rakunlabs/sshwarma/internal/toolcache"
)

// fakeHost is a minimal Host for exercising host function bindings
// without a real session.
type fakeHost struct {
	room       RoomSnapshot
	statuses   *statustrack.Tracker
	cache      *toolcache.Cache
	dirty      *dirtytag.Set
	started    time.Time
	registered []ToolDef
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		room:    RoomSnapshot{Name: "lobby", Participants: []string{"alice", "@nova"}},
		statuses: statustrack.New(time.Unix(0, 0)),
		cache:   toolcache.New(),
		dirty:   dirtytag.New(),
		started: time.Unix(0, 0),
	}
}

func (h *fakeHost) Room() RoomSnapshot                                 { return h.room }
func (h *fakeHost) MCPStatus() []mcpmanager.Status                     { return nil }
func (h *fakeHost) Statuses() map[string]statustrack.ParticipantStatus { return h.statuses.Snapshot() }
func (h *fakeHost) SessionDuration() time.Duration                     { return time.Minute }
func (h *fakeHost) ToolCache() *toolcache.Cache                        { return h.cache }
func (h *fakeHost) DirtyTags() *dirtytag.Set                           { return h.dirty }
func (h *fakeHost) RegisterTool(def ToolDef)                           { h.registered = append(h.registered, def) }

var _ Host = (*fakeHost)(nil)
