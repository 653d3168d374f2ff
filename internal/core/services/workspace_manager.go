package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// ManagerConfig controls workspace lifetime and the settings handed to
// each new workspace.
type ManagerConfig struct {
	Workspace       WorkspaceConfig
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

type managedWorkspace struct {
	ws       *Workspace
	lastUsed time.Time
	mounted  sync.Once
}

// WorkspaceManager owns one workspace per client. A workspace is created
// and mounted on first access and evicted once it has been idle for longer
// than IdleTTL.
type WorkspaceManager struct {
	mu         sync.Mutex
	workspaces map[uuid.UUID]*managedWorkspace
	deps       WorkspaceDeps
	cfg        ManagerConfig
	now        Clock
	logger     *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.WorkspaceProvider = (*WorkspaceManager)(nil)

// NewWorkspaceManager creates a manager. The idle sweep runs in the
// background when both IdleTTL and CleanupInterval are positive.
func NewWorkspaceManager(deps WorkspaceDeps, cfg ManagerConfig) *WorkspaceManager {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.IDs == nil {
		deps.IDs = NewIDGenerator(deps.Clock)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := &WorkspaceManager{
		workspaces: make(map[uuid.UUID]*managedWorkspace),
		deps:       deps,
		cfg:        cfg,
		now:        deps.Clock,
		logger:     deps.Logger.With("component", "workspace_manager"),
		stop:       make(chan struct{}),
	}

	if cfg.IdleTTL > 0 && cfg.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupWorkspaces()
	}

	return m
}

// Acquire returns the client's workspace, creating it on first use. The
// first acquisition starts the initial load in the background.
func (m *WorkspaceManager) Acquire(clientID uuid.UUID) ports.Workspace {
	return m.acquire(clientID)
}

func (m *WorkspaceManager) acquire(clientID uuid.UUID) *Workspace {
	m.mu.Lock()
	entry, exists := m.workspaces[clientID]
	if !exists {
		cfg := m.cfg.Workspace
		cfg.CacheKey = namespacedKey(cfg.CacheKey, clientID)
		cfg.FilterKey = namespacedKey(cfg.FilterKey, clientID)
		entry = &managedWorkspace{ws: NewWorkspace(clientID, m.deps, cfg)}
		m.workspaces[clientID] = entry
		activeWorkspaces.Inc()
	}
	entry.lastUsed = m.now()
	m.mu.Unlock()

	entry.mounted.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := entry.ws.Mount(context.Background()); err != nil {
				m.logger.Warn("initial load failed", "client_id", clientID.String(), "error", err)
			}
		}()
	})

	return entry.ws
}

// Len returns the number of live workspaces.
func (m *WorkspaceManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// EvictIdle removes workspaces unused for longer than IdleTTL that have no
// write in flight, and returns how many were removed.
func (m *WorkspaceManager) EvictIdle() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var evicted []*Workspace
	for id, entry := range m.workspaces {
		if entry.lastUsed.After(cutoff) || !entry.ws.Idle() {
			continue
		}
		delete(m.workspaces, id)
		evicted = append(evicted, entry.ws)
	}
	m.mu.Unlock()

	for _, ws := range evicted {
		ws.Close()
		activeWorkspaces.Dec()
	}
	if len(evicted) > 0 {
		m.logger.Debug("evicted idle workspaces", "count", len(evicted))
	}
	return len(evicted)
}

// Shutdown stops the idle sweep and waits for every workspace to drain.
func (m *WorkspaceManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	workspaces := make([]*Workspace, 0, len(m.workspaces))
	for _, entry := range m.workspaces {
		workspaces = append(workspaces, entry.ws)
	}
	m.mu.Unlock()

	for _, ws := range workspaces {
		ws.Close()
	}
}

func (m *WorkspaceManager) cleanupWorkspaces() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.EvictIdle()
		case <-m.stop:
			return
		}
	}
}

func namespacedKey(base string, clientID uuid.UUID) string {
	return base + ":" + clientID.String()
}
