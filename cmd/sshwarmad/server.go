package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rakunlabs/sshwarma/internal/config"
	"github.com/rakunlabs/sshwarma/internal/hostkey"
	"github.com/rakunlabs/sshwarma/internal/script"
	"github.com/rakunlabs/sshwarma/internal/sessioncore"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// server holds everything a newly accepted connection needs to become
// a sessioncore.Session: the resolved config, shared storage/services,
// and the per-connection script loader factory.
type server struct {
	cfg    *config.Config
	store  *sqlite.Store
	deps   sessioncore.Deps
	loader *script.Loader
}

// publicKeyCallback resolves the connecting SSH username/pubkey pair
// to a stored agent. In open-registration mode an unseen key creates a
// new human agent named after the SSH username (S1); otherwise an
// unseen key is rejected. The resolved agent's ID travels in
// Permissions.Extensions so handleConn never re-queries storage for it.
func (srv *server) publicKeyCallback(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	canonical, err := hostkey.Canonicalize(string(ssh.MarshalAuthorizedKey(key)))
	if err != nil {
		return nil, fmt.Errorf("canonicalize pubkey: %w", err)
	}

	ctx := context.Background()

	var agent *sqlite.Agent
	if srv.cfg.OpenRegistration {
		agent, err = srv.store.EnsureHumanByPubkey(ctx, conn.User(), canonical)
	} else {
		agent, err = srv.store.FindAgentByAuth(ctx, "pubkey", canonical)
		if err == nil && agent == nil {
			err = fmt.Errorf("unknown public key for user %q", conn.User())
		}
	}
	if err != nil {
		return nil, err
	}

	return &ssh.Permissions{Extensions: map[string]string{"agent_id": agent.ID}}, nil
}

// handleConn runs the SSH handshake and, for every "session" channel
// the client opens, drives one sessioncore.Session end to end: bytes
// in, ANSI frames out, until the channel or the server context closes.
func (srv *server) handleConn(ctx context.Context, conn net.Conn, sshConfig *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, sshConfig)
	if err != nil {
		slog.Debug("ssh handshake failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	defer sconn.Close()

	go ssh.DiscardRequests(reqs)

	agentID := sconn.Permissions.Extensions["agent_id"]
	agent, err := srv.store.GetAgentByID(ctx, agentID)
	if err != nil {
		slog.Error("load authenticated agent", "agent_id", agentID, "error", err)
		return
	}

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			slog.Error("accept channel", "error", err)
			continue
		}
		go srv.handleSessionChannel(ctx, channel, requests, agent)
	}
}

// handleSessionChannel services one SSH session channel: it waits for
// pty-req + shell before starting the read loop (a bare exec request
// is answered and closed, since sshwarma's surface is interactive-only)
// and feeds terminal bytes to the Session while a background tick
// redraws the HUD.
func (srv *server) handleSessionChannel(ctx context.Context, channel ssh.Channel, requests <-chan *ssh.Request, agent *sqlite.Agent) {
	defer channel.Close()

	width, height := 80, 24
	started := make(chan struct{})
	var sess *sessioncore.Session

	sessionRow, err := srv.store.OpenSession(ctx, agent.ID, sqlite.SessionSSH, json.RawMessage("{}"))
	if err != nil {
		slog.Error("open agent session", "agent_id", agent.ID, "error", err)
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for req := range requests {
			switch req.Type {
			case "pty-req":
				w, h, ok := parsePtyRequest(req.Payload)
				if ok {
					width, height = w, h
				}
				req.Reply(true, nil)
			case "window-change":
				w, h, ok := parseWindowChange(req.Payload)
				if ok && sess != nil {
					sess.Resize(w, h)
				}
				req.Reply(req.WantReply, nil)
			case "shell":
				req.Reply(true, nil)
				sess = sessioncore.New(srv.deps, channel, agent, width, height, "hud")
				sess.AttachScripts(srv.loader, slog.Default())
				sess.AttachSession(sessionRow)
				close(started)
			case "exec":
				req.Reply(true, nil)
				close(started)
			default:
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}
	}()

	select {
	case <-started:
	case <-time.After(30 * time.Second):
		slog.Debug("session channel never requested a shell", "agent", agent.Name)
		return
	case <-connCtx.Done():
		return
	}
	if sess == nil {
		return
	}
	defer sess.Close(context.Background())

	go sess.RunTick(connCtx)

	buf := make([]byte, 1)
	for {
		n, err := channel.Read(buf)
		if n > 0 {
			if handleErr := sess.HandleByte(connCtx, buf[0]); handleErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func parsePtyRequest(payload []byte) (width, height int, ok bool) {
	term, rest, ok := readString(payload)
	_ = term
	if !ok || len(rest) < 8 {
		return 0, 0, false
	}
	width = int(binary.BigEndian.Uint32(rest[0:4]))
	height = int(binary.BigEndian.Uint32(rest[4:8]))
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

func parseWindowChange(payload []byte) (width, height int, ok bool) {
	if len(payload) < 8 {
		return 0, 0, false
	}
	width = int(binary.BigEndian.Uint32(payload[0:4]))
	height = int(binary.BigEndian.Uint32(payload[4:8]))
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

func readString(b []byte) (s string, rest []byte, ok bool) {
	if len(b) < 4 {
		return "", nil, false
	}
	n := binary.BigEndian.Uint32(b[0:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, false
	}
	return string(b[:n]), b[n:], true
}
