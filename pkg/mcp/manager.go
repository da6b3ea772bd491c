package mcp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/core/pkg/tool"
)

// Manager owns one Client per configured MCP server (C9), grounded on
// the teacher's ToolRegistry's source-tracking map, generalized to
// explicit add/remove/shutdown-all lifecycle methods.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]*Client)}
}

// Add connects to and registers a new MCP server under cfg.ID.
func (m *Manager) Add(ctx context.Context, cfg ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[cfg.ID]; exists {
		return fmt.Errorf("mcp server %q already registered", cfg.ID)
	}

	client, err := Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to mcp server %q: %w", cfg.ID, err)
	}

	m.clients[cfg.ID] = client
	return nil
}

// Remove disconnects and forgets the server with the given ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return fmt.Errorf("mcp server %q not registered", id)
	}
	delete(m.clients, id)
	return client.Disconnect()
}

// AllTools returns every tool exposed by every connected server.
func (m *Manager) AllTools() []tool.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []tool.Tool
	for _, client := range m.clients {
		all = append(all, client.Tools()...)
	}
	return all
}

// ShutdownAll disconnects every registered server in parallel, per
// spec.md §4.9's "shutdown_all disconnects every server concurrently
// rather than serially". Returns the first error encountered, if any.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, client := range clients {
		client := client
		g.Go(func() error {
			return client.Disconnect()
		})
	}
	return g.Wait()
}
