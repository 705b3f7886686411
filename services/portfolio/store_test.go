package portfolio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := Store{Path: filepath.Join(t.TempDir(), "data", "portfolios.json")}

	snapshot := Snapshot{
		LastUpdated:    "2026-08-24 14:30 UTC",
		Source:         "carnivoretradedesk.com",
		SectorRotation: positions("XLE", "XLF"),
		LongTerm:       positions("AAPL"),
	}
	require.NoError(t, store.Save(snapshot))

	diff := cmp.Diff(snapshot, store.Load())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestStoreMissingFile(t *testing.T) {
	store := Store{Path: filepath.Join(t.TempDir(), "nope.json")}
	require.True(t, store.Load().Empty())
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolios.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := Store{Path: path}
	require.True(t, store.Load().Empty())
}

// nil numeric fields serialize as json null, never as zero and never
// omitted
func TestStoreNullNumerics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolios.json")
	store := Store{Path: path}
	require.NoError(t, store.Save(Snapshot{LongTerm: positions("AAPL")}))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"avg_cost": null`)
	require.Contains(t, string(contents), `"entry_date": null`)
}
