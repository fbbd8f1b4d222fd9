package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/contracts-search-platform/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (f *fakePublisher) Publish(ctx context.Context, e kafka.Event) error {
	return f.PublishBatch(ctx, []kafka.Event{e})
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewCollector(pub, 3, time.Hour, m)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 3; i++ {
		c.Track(SearchEvent{Query: "obra", TotalCount: 4})
	}
	require.Eventually(t, func() bool { return pub.published() == 3 }, time.Second, 5*time.Millisecond)

	c.Track(SearchEvent{Query: "nada"})
	cancel()
	c.Close()

	assert.Equal(t, 4, pub.published())
	assert.Equal(t, float64(4), testutil.ToFloat64(m.SearchEventsPublished.WithLabelValues("published")))

	last := pub.batches[len(pub.batches)-1][0]
	assert.Equal(t, string(EventZeroResult), last.Key)
	ev := last.Value.(SearchEvent)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestCollectorKeepsEventsOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 2, time.Hour, nil)
	for i := 0; i < 10; i++ {
		c.Track(SearchEvent{Query: "x", TotalCount: 1})
	}
	assert.Equal(t, 6, c.BufferLen(), "buffer is bounded at three batches")

	c.flush(context.Background())
	assert.Equal(t, 6, c.BufferLen())

	pub.fail = false
	c.flush(context.Background())
	assert.Zero(t, c.BufferLen())
	assert.Equal(t, 6, pub.published())
}

type memRecorder struct {
	events []SearchEvent
}

func (m *memRecorder) Record(_ context.Context, e SearchEvent) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memRecorder) Recent(_ context.Context, limit int) ([]SearchEvent, error) {
	if len(m.events) < limit {
		limit = len(m.events)
	}
	return m.events[:limit], nil
}

func TestHandleEventAggregatesAndRecords(t *testing.T) {
	agg := NewAggregator()
	rec := &memRecorder{}
	handle := HandleEvent(agg, rec)

	for _, e := range []SearchEvent{
		{Query: "Hospital", TotalCount: 10, LatencyMs: 30},
		{Query: "hospital ", TotalCount: 10, LatencyMs: 10, CacheHit: true},
		{Query: "zzz", TotalCount: 0, LatencyMs: 20},
		{Query: "obra", TotalCount: 0, Degraded: true, LatencyMs: 40},
		{Type: EventExport, Query: "obra"},
	} {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, handle(context.Background(), nil, raw))
	}
	require.NoError(t, handle(context.Background(), nil, []byte("not json")))

	stats := agg.Stats()
	assert.EqualValues(t, 4, stats.TotalSearches)
	assert.EqualValues(t, 1, stats.ZeroResultCount, "degraded searches are not zero-result searches")
	assert.EqualValues(t, 1, stats.DegradedCount)
	assert.EqualValues(t, 1, stats.ExportCount)
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.Equal(t, QueryCount{Query: "hospital", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, stats.ZeroResultQueries)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 0.001)
	assert.Len(t, rec.events, 5)
}

func TestHandlerHistory(t *testing.T) {
	rec := &memRecorder{events: []SearchEvent{{Query: "a"}, {Query: "b"}}}
	h := NewHandler(NewAggregator(), rec)

	w := httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Entries []SearchEvent `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Entries, 1)

	w = httptest.NewRecorder()
	h.History(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	NewHandler(NewAggregator(), nil).History(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
