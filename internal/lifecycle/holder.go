// Package lifecycle holds at most one shared stream Manager.
package lifecycle

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/ssefeed/internal/connection"
)

// ErrEmptyURL is returned by Acquire when nothing is held and url is empty.
var ErrEmptyURL = errors.New("stream url is empty")

// Factory builds a Manager for url.
type Factory func(url string) *connection.Manager

// NewFactory returns a Factory that copies cfg and sets the URL.
func NewFactory(cfg connection.ManagerConfig, logger *slog.Logger) Factory {
	return func(url string) *connection.Manager {
		c := cfg
		c.URL = url
		return connection.NewManager(c, logger)
	}
}

// Holder owns the shared Manager. The first Acquire after construction or
// DestroyAll binds the URL; later calls get the same Manager whatever URL
// they pass.
type Holder struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	current *connection.Manager
}

// NewHolder creates an empty Holder.
func NewHolder(factory Factory, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{factory: factory, logger: logger}
}

// Acquire returns the held Manager, creating it for url if there is none.
func (h *Holder) Acquire(url string) (*connection.Manager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		if url != h.current.URL() {
			h.logger.Warn("acquire with different url, reusing existing manager",
				"requested", url,
				"bound", h.current.URL(),
			)
		}
		return h.current, nil
	}
	if url == "" {
		return nil, ErrEmptyURL
	}

	h.current = h.factory(url)
	h.logger.Info("manager created", "url", url, "client_id", h.current.ClientID())
	return h.current, nil
}

// Current returns the held Manager, or nil.
func (h *Holder) Current() *connection.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// DestroyAll closes the held Manager, if any, and forgets it. The next
// Acquire creates a fresh one.
func (h *Holder) DestroyAll() {
	h.mu.Lock()
	m := h.current
	h.current = nil
	h.mu.Unlock()

	if m == nil {
		return
	}
	m.Close()
	h.logger.Info("manager destroyed", "url", m.URL())
}
