// Package mcp exposes the zotkit tool surface over the Model Context
// Protocol. Each tool family lives in its own file; registration wires the
// handlers onto a stdio MCP server.
package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	zotkit "github.com/zotkit/zotkit/pkg"
	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/semantic"
)

// ZotkitMCPServer bundles the MCP server with the shared library manager.
type ZotkitMCPServer struct {
	mcpServer *server.MCPServer
	manager   *library.Manager
	log       zerolog.Logger

	maintCancel context.CancelFunc
	maintDone   chan struct{}
}

// NewZotkitMCPServer builds the server and registers every tool.
func NewZotkitMCPServer(log zerolog.Logger) *ZotkitMCPServer {
	s := server.NewMCPServer(
		"zotkit",
		zotkit.Version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
		server.WithRecovery(),
	)

	manager := library.NewManager(log)

	RegisterPingTool(s)
	RegisterSearchTools(s, manager, log)
	RegisterItemTools(s, manager, log)
	RegisterLibraryTools(s, manager, log)
	RegisterNoteTools(s, manager, log)
	RegisterWriteTools(s, manager, log)
	RegisterSemanticTools(s, manager, log)
	RegisterConnectorTools(s, manager, log)

	return &ZotkitMCPServer{
		mcpServer: s,
		manager:   manager,
		log:       log.With().Str("component", "mcp").Logger(),
	}
}

// Start launches the background index maintenance and serves MCP over stdio.
// It blocks until the transport closes.
func (s *ZotkitMCPServer) Start() error {
	s.startMaintenance()
	s.log.Info().Str("version", zotkit.Version).Msg("serving MCP over stdio")
	err := server.ServeStdio(s.mcpServer)
	s.stopMaintenance()
	return err
}

// startMaintenance kicks off a one-shot semantic index update when the
// configured schedule says one is due. Failures are logged; the server
// starts regardless.
func (s *ZotkitMCPServer) startMaintenance() {
	ctx, cancel := context.WithCancel(context.Background())
	s.maintCancel = cancel
	s.maintDone = make(chan struct{})

	go func() {
		defer close(s.maintDone)

		configPath, err := semanticConfigPath()
		if err != nil {
			return
		}
		cfg, err := semantic.LoadConfig(configPath)
		if err != nil || !cfg.ShouldUpdate(time.Now()) {
			return
		}

		engine, err := semantic.NewEngine(configPath, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("scheduled index update skipped")
			return
		}
		defer engine.Close()

		client, err := s.manager.Client(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("scheduled index update skipped")
			return
		}

		stats, err := engine.UpdateDatabase(ctx, client, false, 0)
		if err != nil {
			s.log.Warn().Err(err).Msg("scheduled index update failed")
			return
		}
		s.log.Info().
			Int("added", stats.Added).
			Int("updated", stats.Updated).
			Int("skipped", stats.Skipped).
			Dur("duration", stats.Duration).
			Msg("scheduled index update complete")
	}()
}

// stopMaintenance cancels the maintenance goroutine and waits briefly for it
// to wind down.
func (s *ZotkitMCPServer) stopMaintenance() {
	if s.maintCancel == nil {
		return
	}
	s.maintCancel()
	select {
	case <-s.maintDone:
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("index maintenance did not stop in time")
	}
}

// RegisterPingTool wires a trivial liveness check.
func RegisterPingTool(s *server.MCPServer) {
	tool := mcp.NewTool("zotero_ping",
		mcp.WithDescription("Check that the zotkit server is alive. Returns the server version."),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(fmt.Sprintf("pong (zotkit %s)", zotkit.Version)), nil
	})
}

// semanticConfigPath locates the semantic search config file.
func semanticConfigPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "semantic.json"), nil
}
