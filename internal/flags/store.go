package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	indexKey    = "flags:index"
	valuePrefix = "flags:"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid flag key %q", key)
	}
	return nil
}

// Store keeps flags in Redis: one JSON value per key plus a set indexing
// the known keys.
type Store struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, flagKey(key), b, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag %s: %w", key, err)
	}
	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, flagKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag %s: %w", key, err)
	}

	var f Flag
	if err := json.Unmarshal(val, &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag %s: %w", key, err)
	}
	return &f, nil
}

// List returns every indexed flag sorted by key. Index entries whose value
// is gone or unreadable are left out.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}

	redisKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if ValidateKey(k) == nil {
			redisKeys = append(redisKeys, flagKey(k))
		}
	}
	if len(redisKeys) == 0 {
		return []*Flag{}, nil
	}

	vals, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}

	out := make([]*Flag, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var f Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		out = append(out, &f)
	}
	sortFlags(out)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, flagKey(key))
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	return nil
}

func flagKey(key string) string {
	return valuePrefix + key
}

func sortFlags(fs []*Flag) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Key < fs[j].Key })
}

// MemoryStore is a process-local Backend used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]Flag
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]Flag), now: time.Now}
}

func (m *MemoryStore) Upsert(_ context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f := Flag{Key: key, Value: value, UpdatedAt: m.now().UTC()}
	m.mu.Lock()
	m.flags[key] = f
	m.mu.Unlock()
	return &f, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	f, ok := m.flags[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *MemoryStore) List(context.Context) ([]*Flag, error) {
	m.mu.RLock()
	out := make([]*Flag, 0, len(m.flags))
	for _, f := range m.flags {
		f := f
		out = append(out, &f)
	}
	m.mu.RUnlock()
	sortFlags(out)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.flags, key)
	m.mu.Unlock()
	return nil
}
