package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"log/slog"

	"github.com/janasewa/membership-go/internal/constants"
	"github.com/janasewa/membership-go/pkg/errors"
)

// Service: wraps the Valkey client with JSON value handling and hit/miss
// accounting. Values are opaque serializable structures; no query capability
// beyond exact-key lookup.
type Service struct {
	client    valkey.Client
	logger    *slog.Logger
	closeOnce sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// Config: Valkey connection settings
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Stats: aggregate cache store counters.
type Stats struct {
	Hits             int64 `json:"hits"`
	Misses           int64 `json:"misses"`
	KeyCount         int64 `json:"keyCount"`
	ApproxMemoryByte int64 `json:"approxMemoryBytes"`
}

// NewCacheService: creates a Valkey-backed cache service and verifies the
// connection with a ping.
func NewCacheService(cfg Config, logger *slog.Logger) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		ConnWriteTimeout:  constants.ValkeyConfig.ConnWriteTimeout,
		BlockingPoolSize:  constants.ValkeyConfig.BlockingPoolSize,
		PipelineMultiplex: constants.ValkeyConfig.PipelineMultiplex,
		Dialer:            net.Dialer{Timeout: constants.ValkeyConfig.DialTimeout},
	})
	if err != nil {
		return nil, errors.NewCacheError("init", "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ValkeyConfig.ReadyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.NewCacheError("ping", "", err)
	}

	logger.Info("Cache store connected",
		slog.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		slog.Int("db", cfg.DB),
	)

	return &Service{
		client: client,
		logger: logger,
	}, nil
}

// NewWithClient: wraps an existing client. Used by tests.
func NewWithClient(client valkey.Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Get: fetches a key and unmarshals it into dest. Returns found=false when
// the key does not exist; a store failure is returned as a CacheError.
func (c *Service) Get(ctx context.Context, key string, dest any) (bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if valkey.IsValkeyNil(resp.Error()) {
		c.misses.Add(1)
		return false, nil
	}
	if resp.Error() != nil {
		c.logger.Error("Cache get failed", slog.String("key", key), slog.Any("error", resp.Error()))
		return false, errors.NewCacheError("get", key, resp.Error())
	}

	value, err := resp.AsBytes()
	if err != nil {
		c.misses.Add(1)
		c.logger.Error("Cache value conversion failed", slog.String("key", key), slog.Any("error", err))
		return false, errors.NewCacheError("get", key, err)
	}

	if dest != nil {
		// An undecodable entry counts as a miss so the stats stay honest.
		if err := json.Unmarshal(value, dest); err != nil {
			c.misses.Add(1)
			c.logger.Error("Cache value unmarshal failed", slog.String("key", key), slog.Any("error", err))
			return false, errors.NewCacheError("get", key, err)
		}
	}

	c.hits.Add(1)
	return true, nil
}

// Set: marshals value to JSON and stores it under key with the given TTL.
func (c *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("set", key, err)
	}

	var cmd valkey.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(jsonData)).ExSeconds(int64(ttl.Seconds())).Build()
	} else {
		cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(jsonData)).Build()
	}

	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Error("Cache set failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("set", key, err)
	}

	return nil
}

// MSet: stores multiple key/value pairs with one pipelined batch.
func (c *Service) MSet(ctx context.Context, pairs map[string]any, ttl time.Duration) error {
	if len(pairs) == 0 {
		return nil
	}

	cmds := make([]valkey.Completed, 0, len(pairs))
	for key, value := range pairs {
		jsonData, err := json.Marshal(value)
		if err != nil {
			c.logger.Warn("Failed to marshal value for MSet", slog.String("key", key), slog.Any("error", err))
			continue
		}

		var cmd valkey.Completed
		if ttl > 0 {
			cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(jsonData)).ExSeconds(int64(ttl.Seconds())).Build()
		} else {
			cmd = c.client.B().Set().Key(key).Value(valkey.BinaryString(jsonData)).Build()
		}
		cmds = append(cmds, cmd)
	}

	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if resp.Error() != nil {
			c.logger.Error("MSet command failed", slog.Any("error", resp.Error()))
			return errors.NewCacheError("mset", "", resp.Error())
		}
	}

	return nil
}

// Del: deletes one key.
func (c *Service) Del(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error(); err != nil {
		c.logger.Error("Cache delete failed", slog.String("key", key), slog.Any("error", err))
		return errors.NewCacheError("del", key, err)
	}
	return nil
}

// DelMany: deletes multiple keys and reports how many existed.
func (c *Service) DelMany(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	resp := c.client.Do(ctx, c.client.B().Del().Key(keys...).Build())
	if resp.Error() != nil {
		c.logger.Error("Cache delete many failed", slog.Int("count", len(keys)), slog.Any("error", resp.Error()))
		return 0, errors.NewCacheError("del", fmt.Sprintf("%d keys", len(keys)), resp.Error())
	}

	deleted, err := resp.AsInt64()
	if err != nil {
		return 0, errors.NewCacheError("del", "", err)
	}

	return deleted, nil
}

// Exists: reports whether a key is present.
func (c *Service) Exists(ctx context.Context, key string) (bool, error) {
	resp := c.client.Do(ctx, c.client.B().Exists().Key(key).Build())
	if resp.Error() != nil {
		return false, errors.NewCacheError("exists", key, resp.Error())
	}

	count, err := resp.AsInt64()
	if err != nil {
		return false, errors.NewCacheError("exists", key, err)
	}

	return count > 0, nil
}

// Stats: aggregate counters. Hits and misses are accounted per handle;
// key count comes from DBSIZE and the memory estimate from INFO memory
// (best-effort, zero when the server does not report it).
func (c *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}

	resp := c.client.Do(ctx, c.client.B().Dbsize().Build())
	if resp.Error() != nil {
		return nil, errors.NewCacheError("stats", "dbsize", resp.Error())
	}
	keyCount, err := resp.AsInt64()
	if err != nil {
		return nil, errors.NewCacheError("stats", "dbsize", err)
	}
	stats.KeyCount = keyCount

	// INFO is unavailable on some test servers; memory stays 0 in that case.
	infoResp := c.client.Do(ctx, c.client.B().Info().Section("memory").Build())
	if infoResp.Error() == nil {
		if raw, err := infoResp.ToString(); err == nil {
			stats.ApproxMemoryByte = parseUsedMemory(raw)
		}
	}

	return stats, nil
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

// Close: shuts down the cache store connection.
func (c *Service) Close() error {
	c.closeOnce.Do(func() {
		if c.client == nil {
			return
		}
		c.client.Close()
		c.logger.Info("Cache store disconnected")
	})
	return nil
}

// IsConnected: reports whether the cache store answers a ping.
func (c *Service) IsConnected(ctx context.Context) bool {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error() == nil
}
