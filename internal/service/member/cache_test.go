package member

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/janasewa/membership-go/internal/domain"
	"github.com/janasewa/membership-go/internal/service/cache"
	"github.com/janasewa/membership-go/pkg/errors"
)

// fakeSource: scripted record source with per-method call counters.
type fakeSource struct {
	records map[string]*domain.MemberRecord

	summaryErr error
	joinedErr  error
	recentErr  error

	summaryByIDCalls int
	summaryByNoCalls int
	joinedByIDCalls  int
	joinedByNoCalls  int
	batchCalls       int
	recentCalls      int
}

func (f *fakeSource) byID(id string) *domain.MemberRecord {
	for _, rec := range f.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (f *fakeSource) SummaryByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	f.summaryByIDCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.byID(id), nil
}

func (f *fakeSource) SummaryByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error) {
	f.summaryByNoCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.records[memberNo], nil
}

func (f *fakeSource) SummariesByMemberNo(ctx context.Context, memberNos []string) ([]*domain.MemberRecord, error) {
	f.batchCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	var out []*domain.MemberRecord
	for _, no := range memberNos {
		if rec, ok := f.records[no]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSource) JoinedByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	f.joinedByIDCalls++
	if f.joinedErr != nil {
		return nil, f.joinedErr
	}
	return f.byID(id), nil
}

func (f *fakeSource) JoinedByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error) {
	f.joinedByNoCalls++
	if f.joinedErr != nil {
		return nil, f.joinedErr
	}
	return f.records[memberNo], nil
}

func (f *fakeSource) RecentActive(ctx context.Context, limit int) ([]*domain.MemberRecord, error) {
	f.recentCalls++
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	var out []*domain.MemberRecord
	for _, rec := range f.records {
		out = append(out, rec)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestStore(t *testing.T) (*cache.Service, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mini.Addr())
	if err != nil {
		t.Fatalf("failed to split address: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{net.JoinHostPort(host, portStr)},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}
	svc := cache.NewWithClient(client, logger)

	t.Cleanup(func() {
		_ = svc.Close()
		mini.Close()
	})

	return svc, mini
}

func testRecord(id, memberNo string) *domain.MemberRecord {
	joined := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.MemberRecord{
		ID:             id,
		MemberNo:       memberNo,
		FirstName:      "Sita",
		LastName:       "Sharma",
		Province:       "Bagmati",
		MembershipType: "general",
		JoinedAt:       &joined,
	}
}

func newTestLookupCache(t *testing.T, source Source) *Cache {
	t.Helper()
	store, _ := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLookupCache(source, store, logger, Config{TTL: time.Minute})
}

func TestGetByIDPopulatesBothKeys(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	record, err := c.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if record == nil || record.CacheHit {
		t.Fatalf("expected fresh record, got %+v", record)
	}
	if source.summaryByIDCalls != 1 {
		t.Fatalf("expected 1 source call, got %d", source.summaryByIDCalls)
	}

	// The other direction must now be answered from the cache.
	record, err = c.GetByMemberNo(ctx, "M-100")
	if err != nil {
		t.Fatalf("get by member no failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected cache hit, got %+v", record)
	}
	if source.summaryByNoCalls != 0 {
		t.Fatalf("expected no member-no source calls, got %d", source.summaryByNoCalls)
	}
}

func TestGetByMemberNoPopulatesIDKey(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	if _, err := c.GetByMemberNo(ctx, "M-100"); err != nil {
		t.Fatalf("get by member no failed: %v", err)
	}

	record, err := c.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("get by id failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected cache hit, got %+v", record)
	}
	if source.summaryByIDCalls != 0 {
		t.Fatalf("expected no id source calls, got %d", source.summaryByIDCalls)
	}
}

func TestFallbackToJoinedViewWhenFastProjectionMissing(t *testing.T) {
	source := &fakeSource{
		records:    map[string]*domain.MemberRecord{"M-100": testRecord("id-1", "M-100")},
		summaryErr: errors.NewSourceUnavailable("summary_by_id", nil),
	}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	record, err := c.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if record == nil || record.MemberNo != "M-100" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if source.joinedByIDCalls != 1 {
		t.Fatalf("expected 1 joined call, got %d", source.joinedByIDCalls)
	}

	// The fallback result must be cached like any other.
	record, err = c.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected cache hit after fallback, got %+v", record)
	}
}

func TestSourceFailurePropagates(t *testing.T) {
	source := &fakeSource{
		summaryErr: errors.NewSourceError("summary_by_id", context.DeadlineExceeded),
	}
	c := newTestLookupCache(t, source)

	if _, err := c.GetByID(context.Background(), "id-1"); err == nil {
		t.Fatalf("expected source failure to propagate")
	}
	if source.joinedByIDCalls != 0 {
		t.Fatalf("plain source failure must not trigger the joined fallback")
	}
}

func TestGetByIDMissingMember(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{}}
	c := newTestLookupCache(t, source)

	record, err := c.GetByID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}

func TestInvalidateForcesRequery(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	if _, err := c.GetByID(ctx, "id-1"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := c.Invalidate(ctx, "id-1", "M-100"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	record, err := c.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("get after invalidate failed: %v", err)
	}
	if record.CacheHit {
		t.Fatalf("expected miss after invalidation")
	}
	if source.summaryByIDCalls != 2 {
		t.Fatalf("expected requery after invalidation, got %d calls", source.summaryByIDCalls)
	}

	record, err = c.GetByMemberNo(ctx, "M-100")
	if err != nil {
		t.Fatalf("get by member no failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("requery must restore both key copies")
	}
}

func TestNoMemberNoKeyForRecordWithoutNumber(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"": testRecord("id-2", ""),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	record, err := c.GetByID(ctx, "id-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record == nil || record.MemberNo != "" {
		t.Fatalf("unexpected record: %+v", record)
	}

	exists, err := c.store.Exists(ctx, memberNoKeyPrefix)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatalf("no member-no key may be written for a record without a number")
	}
}

func TestGetManyByMemberNoMixesHitsAndMisses(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
		"M-200": testRecord("id-2", "M-200"),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	// Prime one of the two numbers.
	if _, err := c.GetByMemberNo(ctx, "M-100"); err != nil {
		t.Fatalf("prime failed: %v", err)
	}

	records, err := c.GetManyByMemberNo(ctx, []string{"M-100", "M-200", "M-999"})
	if err != nil {
		t.Fatalf("batch lookup failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if source.batchCalls != 1 {
		t.Fatalf("expected a single batched source query, got %d", source.batchCalls)
	}

	// The miss must have been written back under its member-no key.
	record, err := c.GetByMemberNo(ctx, "M-200")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected write-back hit for M-200")
	}
}

func TestWarmUpPopulatesBothKeys(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
		"M-200": testRecord("id-2", "M-200"),
		"M-300": testRecord("id-3", "M-300"),
	}}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	loaded, err := c.WarmUp(ctx, 10)
	if err != nil {
		t.Fatalf("warm-up failed: %v", err)
	}
	if loaded != 3 {
		t.Fatalf("expected 3 loaded records, got %d", loaded)
	}

	record, err := c.GetByID(ctx, "id-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected warmed id key for id-2")
	}

	record, err = c.GetByMemberNo(ctx, "M-300")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record == nil || !record.CacheHit {
		t.Fatalf("expected warmed member-no key for M-300")
	}
	if source.summaryByIDCalls != 0 || source.summaryByNoCalls != 0 {
		t.Fatalf("warmed lookups must not hit the source")
	}
}

// gatedSource: blocks SummaryByID until released, counting calls. Only the
// methods the concurrent-miss test touches are real.
type gatedSource struct {
	fakeSource
	record  *domain.MemberRecord
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedSource) SummaryByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	g.calls.Add(1)
	<-g.release
	return g.record, nil
}

func TestConcurrentMissesCollapseToOneSourceQuery(t *testing.T) {
	source := &gatedSource{
		record:  testRecord("id-1", "M-100"),
		release: make(chan struct{}),
	}
	c := newTestLookupCache(t, source)
	ctx := context.Background()

	const lookups = 8
	results := make([]*domain.MemberRecord, lookups)
	errs := make([]error, lookups)

	var wg sync.WaitGroup
	for i := 0; i < lookups; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = c.GetByID(ctx, "id-1")
		}(i)
	}

	// Let every goroutine miss the cache and queue up before the source
	// answers.
	time.Sleep(100 * time.Millisecond)
	close(source.release)
	wg.Wait()

	for i := 0; i < lookups; i++ {
		if errs[i] != nil {
			t.Fatalf("lookup %d failed: %v", i, errs[i])
		}
		if results[i] == nil || results[i].ID != "id-1" {
			t.Fatalf("lookup %d got wrong record: %+v", i, results[i])
		}
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("expected concurrent misses to share one source query, got %d", got)
	}
}

func TestCacheOutageDegradesToSource(t *testing.T) {
	source := &fakeSource{records: map[string]*domain.MemberRecord{
		"M-100": testRecord("id-1", "M-100"),
	}}
	store, mini := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewLookupCache(source, store, logger, Config{TTL: time.Minute})

	mini.Close()

	record, err := c.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("cache outage must not fail the lookup: %v", err)
	}
	if record == nil || record.CacheHit {
		t.Fatalf("expected a fresh source record, got %+v", record)
	}
	if source.summaryByIDCalls != 1 {
		t.Fatalf("expected 1 source call, got %d", source.summaryByIDCalls)
	}

	// The failed write-back is swallowed too, so a second lookup just reads
	// the source again.
	record, err = c.GetByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if record == nil || record.CacheHit {
		t.Fatalf("expected another source read, got %+v", record)
	}
	if source.summaryByIDCalls != 2 {
		t.Fatalf("expected 2 source calls, got %d", source.summaryByIDCalls)
	}
}

func TestWarmUpSwallowsSourceFailure(t *testing.T) {
	source := &fakeSource{
		recentErr: errors.NewSourceError("recent_active", context.DeadlineExceeded),
	}
	c := newTestLookupCache(t, source)

	loaded, err := c.WarmUp(context.Background(), 10)
	if err != nil {
		t.Fatalf("warm-up must be best-effort, got %v", err)
	}
	if loaded != 0 {
		t.Fatalf("expected 0 loaded records, got %d", loaded)
	}
}
