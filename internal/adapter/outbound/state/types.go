// Package state provides a file-backed key/value store for the client's
// persisted session and verification clearance.
package state

import "time"

// stateVersion is bumped when the on-disk layout changes.
const stateVersion = "1"

// StateFile is the JSON document persisted at the store path.
// Values holds one flat string per key; the session and the verification
// clearance never share a key.
type StateFile struct {
	Version   string            `json:"version"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func emptyState() *StateFile {
	return &StateFile{
		Version: stateVersion,
		Values:  map[string]string{},
	}
}
