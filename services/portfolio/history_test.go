package portfolio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHistoryRecordAndRecentRuns(t *testing.T) {
	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	ctx := context.Background()
	first := time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	err = history.Record(ctx, Snapshot{
		Source:         "carnivoretradedesk.com",
		SectorRotation: positions("XLE", "XLF"),
		LongTerm:       positions("AAPL"),
	}, StatusOK, first)
	require.NoError(t, err)

	err = history.Record(ctx, Snapshot{
		Source: "carnivoretradedesk.com",
	}, StatusLoginFailed, second)
	require.NoError(t, err)

	runs, err := history.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// newest first
	require.Equal(t, second, runs[0].Time)
	require.Equal(t, StatusLoginFailed, runs[0].Status)
	require.Equal(t, 0, runs[0].SectorRotation)
	require.Equal(t, 0, runs[0].LongTerm)

	require.Equal(t, first, runs[1].Time)
	require.Equal(t, StatusOK, runs[1].Status)
	require.Equal(t, 2, runs[1].SectorRotation)
	require.Equal(t, 1, runs[1].LongTerm)
}

func TestHistoryLimit(t *testing.T) {
	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err = history.Record(ctx, Snapshot{Source: "test"}, StatusOK, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	runs, err := history.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, base.Add(4*time.Hour), runs[0].Time)
}
