// Package redis provides a Redis backend. Each sanction is a hash holding its
// JSON document and version; a sorted set indexes ids by creation time. Writes
// run as Lua scripts so the version check and the write are atomic.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"sanctioncore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "sanctioncore:"

// KEYS[1] = record hash, KEYS[2] = index zset
// ARGV[1] = document, ARGV[2] = created_at millis, ARGV[3] = id
var createScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
redis.call("HSET", KEYS[1], "doc", ARGV[1], "version", 1)
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// KEYS[1] = record hash
// ARGV[1] = expected version, ARGV[2] = document, ARGV[3] = next version
var swapScript = goredis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if not current then
    return -1
end
if tonumber(current) ~= tonumber(ARGV[1]) then
    return 0
end
redis.call("HSET", KEYS[1], "doc", ARGV[2], "version", ARGV[3])
return 1
`)

// KEYS[1] = record hash, KEYS[2] = index zset
// ARGV[1] = id
var deleteScript = goredis.NewScript(`
if redis.call("DEL", KEYS[1]) == 0 then
    return 0
end
redis.call("ZREM", KEYS[2], ARGV[1])
return 1
`)

// Options configures a Redis-backed store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store persists sanctions in Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// NewStore dials Redis and verifies connectivity.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewFromClient(client, opts.Prefix), nil
}

// NewFromClient wraps an existing client. An empty prefix selects DefaultPrefix.
func NewFromClient(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(id string) string { return s.prefix + "sanction:" + id }

func (s *Store) indexKey() string { return s.prefix + "sanctions" }

// CreateSanction stores a new record with Version 1.
func (s *Store) CreateSanction(ctx context.Context, sanction domain.Sanction) (domain.Sanction, error) {
	sanction.Version = 1
	doc, err := json.Marshal(sanction)
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("encode sanction %s: %w", sanction.ID, err)
	}
	created, err := createScript.Run(ctx, s.client,
		[]string{s.recordKey(sanction.ID), s.indexKey()},
		doc, sanction.CreatedAt.UnixMilli(), sanction.ID,
	).Int()
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("redis create sanction %s: %w", sanction.ID, err)
	}
	if created == 0 {
		return domain.Sanction{}, fmt.Errorf("sanction %q already exists", sanction.ID)
	}
	return sanction, nil
}

// GetSanction loads a single record.
func (s *Store) GetSanction(ctx context.Context, id string) (domain.Sanction, error) {
	vals, err := s.client.HMGet(ctx, s.recordKey(id), "doc", "version").Result()
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("redis get sanction %s: %w", id, err)
	}
	sanction, ok, err := decode(vals)
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("decode sanction %s: %w", id, err)
	}
	if !ok {
		return domain.Sanction{}, domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	return sanction, nil
}

// ListSanctions reads the index, fetches every record in one pipeline and
// filters client side.
func (s *Store) ListSanctions(ctx context.Context, q domain.SanctionQuery) (domain.SanctionPage, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return domain.SanctionPage{}, fmt.Errorf("redis list index: %w", err)
	}
	cmds := make([]*goredis.SliceCmd, len(ids))
	if len(ids) > 0 {
		_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HMGet(ctx, s.recordKey(id), "doc", "version")
			}
			return nil
		})
		if err != nil {
			return domain.SanctionPage{}, fmt.Errorf("redis list fetch: %w", err)
		}
	}
	matched := make([]domain.Sanction, 0, len(ids))
	for i, cmd := range cmds {
		sanction, ok, err := decode(cmd.Val())
		if err != nil {
			return domain.SanctionPage{}, fmt.Errorf("decode sanction %s: %w", ids[i], err)
		}
		// Deleted between the index read and the fetch.
		if !ok {
			continue
		}
		if q.Matches(sanction) {
			matched = append(matched, sanction)
		}
	}
	domain.SortSanctions(matched)
	return domain.SanctionPage{Items: q.Page(matched), Total: len(matched)}, nil
}

// SwapSanction writes next when the stored version equals expectedVersion.
func (s *Store) SwapSanction(ctx context.Context, next domain.Sanction, expectedVersion int64) (domain.Sanction, error) {
	next.Version = expectedVersion + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("encode sanction %s: %w", next.ID, err)
	}
	outcome, err := swapScript.Run(ctx, s.client, []string{s.recordKey(next.ID)}, expectedVersion, doc, next.Version).Int()
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("redis swap sanction %s: %w", next.ID, err)
	}
	switch outcome {
	case -1:
		return domain.Sanction{}, domain.ErrNotFound{Entity: domain.EntitySanction, ID: next.ID}
	case 0:
		return domain.Sanction{}, domain.ErrVersionConflict
	}
	return next, nil
}

// DeleteSanction removes a record and its index entry.
func (s *Store) DeleteSanction(ctx context.Context, id string) error {
	deleted, err := deleteScript.Run(ctx, s.client, []string{s.recordKey(id), s.indexKey()}, id).Int()
	if err != nil {
		return fmt.Errorf("redis delete sanction %s: %w", id, err)
	}
	if deleted == 0 {
		return domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(vals []any) (domain.Sanction, bool, error) {
	if len(vals) != 2 || vals[0] == nil {
		return domain.Sanction{}, false, nil
	}
	doc, ok := vals[0].(string)
	if !ok {
		return domain.Sanction{}, false, errors.New("unexpected document type")
	}
	var sanction domain.Sanction
	if err := json.Unmarshal([]byte(doc), &sanction); err != nil {
		return domain.Sanction{}, false, err
	}
	if v, ok := vals[1].(string); ok {
		if _, err := fmt.Sscan(v, &sanction.Version); err != nil {
			return domain.Sanction{}, false, fmt.Errorf("parse version %q: %w", v, err)
		}
	}
	return sanction, true, nil
}
