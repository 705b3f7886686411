package portfolio

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Store persists snapshots as a single JSON file. A fresh run always
// starts from whatever the file currently holds.
type Store struct {
	Path string
}

// Load reads the previously persisted snapshot. A missing or corrupt
// file yields an empty snapshot rather than an error so that the first
// run and a damaged file behave the same: no fallback data.
func (s Store) Load() Snapshot {
	var snapshot Snapshot

	contents, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read prior snapshot", "path", s.Path, "err", err)
		}
		return snapshot
	}
	err = json.Unmarshal(contents, &snapshot)
	if err != nil {
		slog.Warn("prior snapshot is not valid json, ignoring it", "path", s.Path, "err", err)
		return Snapshot{}
	}
	return snapshot
}

func (s Store) Save(snapshot Snapshot) error {
	err := os.MkdirAll(filepath.Dir(s.Path), 0755)
	if err != nil {
		return err
	}
	contents, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, contents, 0644)
}
