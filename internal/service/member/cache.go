package member

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"log/slog"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/internal/domain"
	"github.com/janasewa/membership-go/internal/service/cache"
	"github.com/janasewa/membership-go/internal/util"
	"github.com/janasewa/membership-go/pkg/errors"
)

const (
	memberIDKeyPrefix = "member:id:"
	memberNoKeyPrefix = "member:no:"
)

// Cache: read-through lookup cache for member records, addressable by the
// internal ID or the membership number. The same record is deliberately
// duplicated under both keys so either direction is an O(1) hit; both copies
// are written and invalidated together (internal key first).
//
// Cache read failures degrade to source lookups; cache write failures are
// logged and swallowed. Source failures other than the missing fast table
// always propagate.
type Cache struct {
	source Source
	store  *cache.Service
	logger *slog.Logger

	ttl   time.Duration
	group singleflight.Group

	warmUpChunkSize     int
	warmUpMaxGoroutines int
}

// Config: lookup cache settings (TTL, warm-up tuning)
type Config struct {
	TTL                 time.Duration
	WarmUpChunkSize     int
	WarmUpMaxGoroutines int
}

// NewLookupCache: creates the member lookup cache.
func NewLookupCache(source Source, store *cache.Service, logger *slog.Logger, cfg Config) *Cache {
	if cfg.TTL == 0 {
		cfg.TTL = constants.CacheTTL.MemberRecord
	}
	if cfg.WarmUpChunkSize == 0 {
		cfg.WarmUpChunkSize = constants.MemberCacheDefaults.WarmUpChunkSize
	}
	if cfg.WarmUpMaxGoroutines == 0 {
		cfg.WarmUpMaxGoroutines = constants.MemberCacheDefaults.WarmUpMaxGoroutines
	}

	return &Cache{
		source:              source,
		store:               store,
		logger:              logger,
		ttl:                 cfg.TTL,
		warmUpChunkSize:     cfg.WarmUpChunkSize,
		warmUpMaxGoroutines: cfg.WarmUpMaxGoroutines,
	}
}

func (c *Cache) cacheEnabled() bool {
	return c != nil && c.store != nil
}

// GetByID: resolves a member by internal ID. Returns nil without error when
// no record exists in either projection.
func (c *Cache) GetByID(ctx context.Context, id string) (*domain.MemberRecord, error) {
	if rec := c.readCached(ctx, memberIDKeyPrefix+id); rec != nil {
		return rec, nil
	}

	return c.resolve(ctx, memberIDKeyPrefix+id, func() (*domain.MemberRecord, error) {
		record, err := c.source.SummaryByID(ctx, id)
		if isSourceUnavailable(err) {
			c.logger.Warn("Fast projection unavailable, falling back to joined view", slog.String("id", id))
			record, err = c.source.JoinedByID(ctx, id)
		}
		return record, err
	})
}

// GetByMemberNo: resolves a member by membership number. The membership
// number copy is display-oriented; identity decisions should use GetByID.
func (c *Cache) GetByMemberNo(ctx context.Context, memberNo string) (*domain.MemberRecord, error) {
	if rec := c.readCached(ctx, memberNoKeyPrefix+memberNo); rec != nil {
		return rec, nil
	}

	return c.resolve(ctx, memberNoKeyPrefix+memberNo, func() (*domain.MemberRecord, error) {
		record, err := c.source.SummaryByMemberNo(ctx, memberNo)
		if isSourceUnavailable(err) {
			c.logger.Warn("Fast projection unavailable, falling back to joined view", slog.String("member_no", memberNo))
			record, err = c.source.JoinedByMemberNo(ctx, memberNo)
		}
		return record, err
	})
}

// GetManyByMemberNo: resolves many membership numbers with one batched
// source query for the cache misses. Result order is unspecified and absent
// numbers are simply missing from the result.
func (c *Cache) GetManyByMemberNo(ctx context.Context, memberNos []string) ([]*domain.MemberRecord, error) {
	records := make([]*domain.MemberRecord, 0, len(memberNos))
	var misses []string

	for _, no := range memberNos {
		if rec := c.readCached(ctx, memberNoKeyPrefix+no); rec != nil {
			records = append(records, rec)
			continue
		}
		misses = append(misses, no)
	}

	if len(misses) == 0 {
		return records, nil
	}

	fetched, err := c.source.SummariesByMemberNo(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, rec := range fetched {
		if c.cacheEnabled() && rec.MemberNo != "" {
			if err := c.store.Set(ctx, memberNoKeyPrefix+rec.MemberNo, rec, c.ttl); err != nil {
				c.logger.Warn("Failed to cache member by number", slog.String("member_no", rec.MemberNo), slog.Any("error", err))
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// Invalidate: removes both key copies for a member. Every external mutation
// path that touches the underlying row must call this.
func (c *Cache) Invalidate(ctx context.Context, id, memberNo string) error {
	if !c.cacheEnabled() {
		return nil
	}

	keys := []string{memberIDKeyPrefix + id}
	if memberNo != "" {
		keys = append(keys, memberNoKeyPrefix+memberNo)
	}

	if _, err := c.store.DelMany(ctx, keys); err != nil {
		return err
	}

	c.logger.Debug("Member cache invalidated", slog.String("id", id), slog.String("member_no", memberNo))
	return nil
}

// WarmUp: proactively loads up to limit recently updated active records and
// populates both key caches. Best-effort by contract: source or cache
// failures are logged and swallowed, and the number of records actually
// loaded is returned.
func (c *Cache) WarmUp(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = constants.MemberCacheDefaults.WarmUpLimit
	}

	records, err := c.source.RecentActive(ctx, limit)
	if err != nil {
		c.logger.Warn("Cache warm-up skipped: source query failed", slog.Any("error", err))
		return 0, nil
	}
	if len(records) == 0 || !c.cacheEnabled() {
		return 0, nil
	}

	chunks := util.Chunk(records, c.warmUpChunkSize)

	p := pool.New().WithMaxGoroutines(c.warmUpMaxGoroutines)
	for _, chunk := range chunks {
		p.Go(func() {
			c.warmChunk(ctx, chunk)
		})
	}
	p.Wait()

	c.logger.Info("Member cache warmed up",
		slog.Int("records", len(records)),
		slog.Int("chunks", len(chunks)),
	)

	return len(records), nil
}

// warmChunk: pipelines one chunk of records into the store under both keys.
func (c *Cache) warmChunk(ctx context.Context, records []*domain.MemberRecord) {
	pairs := make(map[string]any, len(records)*2)
	for _, rec := range records {
		pairs[memberIDKeyPrefix+rec.ID] = rec
		if rec.MemberNo != "" {
			pairs[memberNoKeyPrefix+rec.MemberNo] = rec
		}
	}

	if err := c.store.MSet(ctx, pairs, c.ttl); err != nil {
		c.logger.Warn("Failed to warm member cache chunk",
			slog.Int("count", len(records)),
			slog.Any("error", err))
	}
}

// readCached: one cache probe. Any cache failure is treated as a miss.
func (c *Cache) readCached(ctx context.Context, key string) *domain.MemberRecord {
	if !c.cacheEnabled() {
		return nil
	}

	var record domain.MemberRecord
	found, err := c.store.Get(ctx, key, &record)
	if err != nil {
		c.logger.Debug("Cache read degraded to miss", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !found || record.ID == "" {
		return nil
	}

	record.CacheHit = true
	return &record
}

// resolve: runs the source lookup behind a per-key single-flight so
// concurrent misses for the same key collapse into one query, then writes
// both key copies back.
func (c *Cache) resolve(ctx context.Context, key string, fetch func() (*domain.MemberRecord, error)) (*domain.MemberRecord, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		record, err := fetch()
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, nil
		}
		c.storeRecord(ctx, record)
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	// Copy so shared single-flight results stay immutable snapshots.
	record := *(v.(*domain.MemberRecord))
	record.CacheHit = false
	return &record, nil
}

// storeRecord: dual-key write, internal key first. A crash between the two
// writes is an accepted inconsistency window. The membership-number copy is
// only written when the record carries a number.
func (c *Cache) storeRecord(ctx context.Context, record *domain.MemberRecord) {
	if !c.cacheEnabled() {
		return
	}

	if err := c.store.Set(ctx, memberIDKeyPrefix+record.ID, record, c.ttl); err != nil {
		c.logger.Warn("Failed to cache member by ID",
			slog.String("id", record.ID),
			slog.Any("error", err),
		)
	}

	if record.MemberNo == "" {
		return
	}
	if err := c.store.Set(ctx, memberNoKeyPrefix+record.MemberNo, record, c.ttl); err != nil {
		c.logger.Warn("Failed to cache member by number",
			slog.String("member_no", record.MemberNo),
			slog.Any("error", err),
		)
	}
}

func isSourceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var srcErr *errors.SourceError
	return stderrors.As(err, &srcErr) && srcErr.Unavailable
}
