package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for _, d := range []string{"2026-10-14", "2026-10-16", "2026-10-15"} {
		require.NoError(t, s.Record(ctx, Entry{Date: day(d), PDFPath: "reports/" + d + ".pdf", PagePath: "history/" + d + ".html"}))
	}

	entries, err := s.List(ctx)

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2026-10-16", entries[0].Day())
	assert.Equal(t, "2026-10-15", entries[1].Day())
	assert.Equal(t, "2026-10-14", entries[2].Day())
	assert.Equal(t, "history/2026-10-16.html", entries[0].PagePath)
}

func TestStore_RecordUpsertsByDate(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{Date: day("2026-10-16"), Results: 1, Summary: "first"}))
	require.NoError(t, s.Record(ctx, Entry{Date: day("2026-10-16"), Results: 3, Summary: "second"}))

	entries, err := s.List(ctx)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Results)
	assert.Equal(t, "second", entries[0].Summary)
}

func TestStore_Empty(t *testing.T) {
	entries, err := openTemp(t).List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{Date: day("2026-10-16")}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(context.Background())

	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
