package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go_edge_gateway/models"
	"go_edge_gateway/services/cachestore"
)

// WindowClaimer takes control of every connected dashboard window without a
// reload. Implemented by the notify hub.
type WindowClaimer interface {
	ClaimAll()
}

// Options configures the lifecycle manager.
type Options struct {
	FrontendBaseURL  string
	StaticStoreName  string
	RuntimeStoreName string
	PrecacheManifest []string
	Client           *http.Client
}

// Manager governs install and activate.
type Manager struct {
	stores       *cachestore.Manager
	claimer      WindowClaimer
	httpClient   *http.Client
	frontendURL  string
	staticStore  string
	runtimeStore string
	manifest     []string
}

// NewManager creates a new lifecycle manager
func NewManager(stores *cachestore.Manager, claimer WindowClaimer, opts Options) *Manager {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{
		stores:       stores,
		claimer:      claimer,
		httpClient:   client,
		frontendURL:  strings.TrimSuffix(opts.FrontendBaseURL, "/"),
		staticStore:  opts.StaticStoreName,
		runtimeStore: opts.RuntimeStoreName,
		manifest:     opts.PrecacheManifest,
	}
}

// OnInstall populates the static store from the precache manifest and then
// activates immediately. A single asset failing to fetch is logged and
// skipped; partial offline coverage beats blocking install on asset
// flakiness.
func (m *Manager) OnInstall(ctx context.Context) error {
	if err := m.stores.Ensure(m.staticStore); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	precached := 0
	for _, route := range m.manifest {
		if err := m.precache(ctx, route); err != nil {
			log.Printf("Precache failed for %s: %v", route, err)
			continue
		}
		precached++
	}
	log.Printf("Precached %d/%d manifest entries into %s", precached, len(m.manifest), m.staticStore)

	// Skip waiting: activate without waiting for open pages to close.
	return m.OnActivate(ctx)
}

// OnActivate garbage-collects every store that is neither the current
// static nor the current runtime store, then claims all open windows.
func (m *Manager) OnActivate(ctx context.Context) error {
	if err := m.stores.Ensure(m.runtimeStore); err != nil {
		return fmt.Errorf("activate failed: %w", err)
	}

	names, err := m.stores.StoreNames()
	if err != nil {
		return fmt.Errorf("activate failed: %w", err)
	}
	for _, name := range names {
		if name == m.staticStore || name == m.runtimeStore {
			continue
		}
		if err := m.stores.Drop(name); err != nil {
			return fmt.Errorf("activate failed dropping %s: %w", name, err)
		}
		log.Printf("Dropped superseded cache store %s", name)
	}

	if m.claimer != nil {
		m.claimer.ClaimAll()
	}
	return nil
}

// precache fetches one manifest route and snapshots it into the static
// store. Non-2xx responses are treated as failures and never stored.
func (m *Manager) precache(ctx context.Context, route string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.frontendURL+route, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	entry := &models.CacheEntry{
		Method: http.MethodGet,
		URL:    route,
		Status: resp.StatusCode,
		Body:   body,
	}
	if err := entry.SetHeader(resp.Header.Clone()); err != nil {
		return err
	}
	return m.stores.Put(m.staticStore, entry)
}
