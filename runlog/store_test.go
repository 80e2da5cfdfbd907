package runlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	s := openStore(t)

	for i, code := range []string{"APP1", "APP2", "APP3"} {
		err := s.Append(Record{
			StartedAt:    time.Date(2026, 7, 1+i, 0, 0, 0, 0, time.UTC),
			AppCode:      code,
			ResourceRows: 10 * (i + 1),
		})
		require.NoError(t, err)
	}

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// newest first
	assert.Equal(t, "APP3", records[0].AppCode)
	assert.Equal(t, "APP1", records[2].AppCode)
	assert.Equal(t, 30, records[0].ResourceRows)
}

func TestList_Limit(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(Record{ServiceRows: i}))
	}

	records, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4, records[0].ServiceRows)
	assert.Equal(t, 3, records[1].ServiceRows)
}

func TestList_Empty(t *testing.T) {
	s := openStore(t)

	records, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAppend_DegradedFetches(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.Append(Record{DegradedFetches: []string{"mappings"}}))

	records, err := s.List(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"mappings"}, records[0].DegradedFetches)
}
