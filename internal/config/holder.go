package config

import "sync/atomic"

// Holder hands out immutable Config snapshots. Reload swaps the snapshot
// atomically so concurrent readers never observe a partially applied
// configuration.
type Holder struct {
	current atomic.Pointer[Config]
}

// NewHolder returns a holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.current.Store(cfg)
	return h
}

// Get returns the current snapshot.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Reload re-runs the load pipeline and swaps in the new snapshot. On
// failure the previous snapshot stays in place.
func (h *Holder) Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	h.current.Store(cfg)
	return cfg, nil
}
