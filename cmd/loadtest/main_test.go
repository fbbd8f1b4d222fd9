package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(time.Millisecond, http.StatusOK, &searchReply{CacheHit: true}, nil)
	s.Record(time.Millisecond, http.StatusBadRequest, nil, nil)
	s.Record(0, 0, nil, assert.AnError)

	assert.EqualValues(t, 3, s.total.Load())
	assert.EqualValues(t, 1, s.success.Load())
	assert.EqualValues(t, 2, s.failed.Load())
	assert.EqualValues(t, 1, s.cacheHits.Load())
	assert.Len(t, s.latencies, 2)
	assert.EqualValues(t, 1, s.codes[http.StatusBadRequest])
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nmedicamentos\n\n  ACME  \n"), 0o644))

	got, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"medicamentos", "ACME"}, got)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}
