// Package store persists the node configuration across restarts.
//
// The real implementation keeps a single CBOR-encoded record in SQLite.
// The memory implementation allows testing without a database.
package store

import "github.com/sweeney/motion-detector/internal/settings"

// Store loads and saves the versioned configuration record.
type Store interface {
	// Load returns the stored configuration. A missing record or one written
	// with a different version yields defaults and no error. On error the
	// returned configuration is defaults.
	Load(version uint16, defaults settings.Configuration) (settings.Configuration, error)

	// Save replaces the stored record.
	Save(version uint16, cfg settings.Configuration) error

	// Reset replaces the stored record with defaults.
	Reset(version uint16, defaults settings.Configuration) error
}
