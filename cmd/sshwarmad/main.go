package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"
	"golang.org/x/crypto/ssh"

	"github.com/rakunlabs/sshwarma/internal/config"
	"github.com/rakunlabs/sshwarma/internal/hostkey"
	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/modelclient"
	"github.com/rakunlabs/sshwarma/internal/modelclient/providers"
	"github.com/rakunlabs/sshwarma/internal/paths"
	"github.com/rakunlabs/sshwarma/internal/script"
	"github.com/rakunlabs/sshwarma/internal/sessioncore"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

var (
	name    = "sshwarmad"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure data/config dirs: %w", err)
	}
	paths.LogPaths()

	store, err := sqlite.Open(ctx, paths.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	signer, err := hostkey.LoadOrGenerate(paths.HostKeyPath())
	if err != nil {
		return fmt.Errorf("load host key: %w", err)
	}

	models := modelclient.NewRegistry(providers.Construct)
	backends, err := config.LoadModels(paths.ModelsConfigPath())
	if err != nil {
		return fmt.Errorf("load models config: %w", err)
	}
	for _, b := range backends {
		if err := models.Register(b); err != nil {
			slog.Error("skipping model backend", "name", b.Name, "error", err)
			continue
		}
		slog.Info("registered model backend", "name", b.Name, "kind", b.Kind)
	}

	mcp := mcpmanager.New(slog.Default())
	for i, endpoint := range config.ParseMCPEndpoints(cfg.MCPEndpoints) {
		mcp.Add(fmt.Sprintf("mcp-%d", i), endpoint)
	}

	reloads, err := script.NewWatcher(paths.ScriptsDir(), slog.Default())
	if err != nil {
		return fmt.Errorf("start script watcher: %w", err)
	}
	defer reloads.Close()

	loader := script.NewLoader(store, paths.ScriptsDir())

	deps := sessioncore.Deps{
		Store:   store,
		MCP:     mcp,
		Models:  models,
		Reloads: reloads,
		Log:     slog.Default(),
	}

	srv := &server{
		cfg:    cfg,
		store:  store,
		deps:   deps,
		loader: loader,
	}

	sshConfig := &ssh.ServerConfig{
		PublicKeyCallback: srv.publicKeyCallback,
	}
	sshConfig.AddHostKey(signer)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	defer listener.Close()

	slog.Info("sshwarmad listening", "addr", cfg.ListenAddr, "open_registration", cfg.OpenRegistration)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			slog.Error("accept connection", "error", err)
			continue
		}
		go srv.handleConn(ctx, conn, sshConfig)
	}
}
