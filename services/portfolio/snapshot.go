package portfolio

import (
	"time"
	"traderdeck/lib/scrapers/carnivore"
)

const timestampLayout = "2006-01-02 15:04 UTC"

// Snapshot is the persisted artifact: both sub-portfolios plus
// provenance. It is fully replaced on each successful run, subject to
// the per-sub-portfolio fallback in Merge.
type Snapshot struct {
	LastUpdated    string               `json:"last_updated"`
	Source         string               `json:"source"`
	SectorRotation []carnivore.Position `json:"sector_rotation"`
	LongTerm       []carnivore.Position `json:"long_term"`
}

func NewSnapshot(source string, at time.Time) Snapshot {
	return Snapshot{
		LastUpdated: at.UTC().Format(timestampLayout),
		Source:      source,
	}
}

// Empty reports whether both sub-portfolios carry no positions.
func (s Snapshot) Empty() bool {
	return len(s.SectorRotation) == 0 && len(s.LongTerm) == 0
}

// Merge applies the overwrite-safety policy: for each sub-portfolio
// independently, an empty extraction falls back to the prior value
// while a non-empty extraction always overwrites, even when smaller
// than before. Pure, no filesystem involved.
func Merge(next Snapshot, prior Snapshot) Snapshot {
	merged := next
	if len(merged.SectorRotation) == 0 {
		merged.SectorRotation = prior.SectorRotation
	}
	if len(merged.LongTerm) == 0 {
		merged.LongTerm = prior.LongTerm
	}
	return merged
}
