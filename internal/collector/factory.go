package collector

import (
	"log/slog"
	"sync"

	"github.com/jethomasphd/thresh/internal/config"
	"github.com/jethomasphd/thresh/internal/domain"
)

// Factory builds and hands out the process's backend. Constructed once at
// startup and passed to consumers; the only mutable state is the cached
// backend instance, which Reset drops so the next Collector call
// re-evaluates the credential configuration.
type Factory struct {
	cache  MetaCache
	logger *slog.Logger

	mu      sync.Mutex
	cfg     config.Settings
	current domain.Collector
}

func NewFactory(cfg config.Settings, cache MetaCache, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{cfg: cfg, cache: cache, logger: logger}
}

// Collector returns the shared backend, building it on first use. The
// authenticated backend is chosen when API credentials are present;
// otherwise collection falls back to public web access. Both satisfy
// domain.Collector, so callers never branch on the mode.
func (f *Factory) Collector() domain.Collector {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		return f.current
	}
	if f.cfg.HasCredentials() {
		f.logger.Info("using authenticated reddit api backend")
		f.current = NewAPIClient(f.cfg, f.cache, f.logger)
	} else {
		f.logger.Info("no api credentials found, using public web backend")
		f.current = NewPublicClient(f.cfg.RedditUserAgent, f.cache, f.logger)
	}
	return f.current
}

// Reset drops the cached backend and installs new settings, so the next
// Collector call rebuilds against them. Safe to invoke while other
// operations hold the previous instance; they keep using it until they ask
// for a fresh one.
func (f *Factory) Reset(cfg config.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	f.current = nil
}
