package store

import "github.com/sweeney/motion-detector/internal/settings"

// Memory is an in-memory Store that records calls for test assertions.
type Memory struct {
	// Record is the stored configuration, nil when nothing was saved.
	Record *settings.Configuration

	// Version is the version the record was saved with.
	Version uint16

	// Saves counts Save calls (including those made by Reset).
	Saves int

	// Resets counts Reset calls.
	Resets int

	// LoadError, if set, will be returned by Load.
	LoadError error

	// SaveError, if set, will be returned by Save and Reset.
	SaveError error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Store.
func (m *Memory) Load(version uint16, defaults settings.Configuration) (settings.Configuration, error) {
	if m.LoadError != nil {
		return defaults, m.LoadError
	}
	if m.Record == nil || m.Version != version {
		return defaults, nil
	}
	return *m.Record, nil
}

// Save implements Store.
func (m *Memory) Save(version uint16, cfg settings.Configuration) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Saves++
	m.Version = version
	m.Record = &cfg
	return nil
}

// Reset implements Store.
func (m *Memory) Reset(version uint16, defaults settings.Configuration) error {
	m.Resets++
	return m.Save(version, defaults)
}
