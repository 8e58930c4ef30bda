// Package cache keeps per-category article lists with a TTL on top of a
// key-value store. Expiry is evaluated on read; expired entries stay available
// through GetStale until they are overwritten, cleared or evicted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kovalyov-valentin/news-retriever/internal/kvstore"
	"github.com/kovalyov-valentin/news-retriever/internal/model"
)

const (
	keyPrefix         = "cache:"
	defaultTTL        = time.Hour
	defaultMaxEntries = 50
)

// Option mutates cache configuration.
type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMaxEntries(maxEntries int) Option {
	return func(s *Store) {
		if maxEntries > 0 {
			s.maxEntries = maxEntries
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the cache of article lists keyed by category.
type Store struct {
	kv         kvstore.Store
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time
	logger     *slog.Logger
}

func New(kv kvstore.Store, options ...Option) *Store {
	s := &Store{
		kv:         kv,
		ttl:        defaultTTL,
		maxEntries: defaultMaxEntries,
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(s)
	}

	return s
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the articles of a fresh entry. Absent, expired or unreadable entries are a miss.
func (s *Store) Get(ctx context.Context, category string) ([]model.Article, bool) {
	entry, ok := s.load(ctx, category)
	if !ok || entry.Expired(s.clock()) {
		return nil, false
	}

	return entry.Articles, true
}

// GetStale returns the entry regardless of expiry.
func (s *Store) GetStale(ctx context.Context, category string) ([]model.Article, bool) {
	entry, ok := s.load(ctx, category)
	if !ok || len(entry.Articles) == 0 {
		return nil, false
	}

	return entry.Articles, true
}

// Entry returns the raw entry for category.
func (s *Store) Entry(ctx context.Context, category string) (model.CacheEntry, bool) {
	return s.load(ctx, category)
}

// Set writes a fresh entry. A failed write is retried once after an eviction pass;
// if it still fails the write is dropped.
func (s *Store) Set(ctx context.Context, category string, articles []model.Article) {
	now := s.clock()
	entry := model.CacheEntry{
		Category:  category,
		Articles:  articles,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "cache encode entry", "category", category, "error", err)
		return
	}

	key := keyPrefix + category
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.WarnContext(ctx, "cache write failed, evicting and retrying", "category", category, "error", err)

		if evictErr := s.evictForRetry(ctx, key); evictErr != nil {
			s.logger.WarnContext(ctx, "cache eviction failed", "error", evictErr)
		}

		if err := s.kv.Set(ctx, key, data); err != nil {
			s.logger.ErrorContext(ctx, "cache write dropped", "category", category, "error", err)
			return
		}
	}

	if err := s.enforceCapacity(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "cache capacity enforcement failed", "error", err)
	}
}

// Clear removes the entry of one category, or every entry when category is empty.
func (s *Store) Clear(ctx context.Context, category string) error {
	if category != "" {
		if err := s.kv.Remove(ctx, keyPrefix+category); err != nil {
			return fmt.Errorf("cache clear %s: %w", category, err)
		}
		return nil
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	for _, key := range keys {
		if err := s.kv.Remove(ctx, key); err != nil {
			return fmt.Errorf("cache clear %s: %w", key, err)
		}
	}

	return nil
}

// Stats reports article count and age for every stored category.
func (s *Store) Stats(ctx context.Context) map[string]model.CacheStat {
	now := s.clock()
	stats := make(map[string]model.CacheStat)

	entries, err := s.entries(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cache stats", "error", err)
	}
	for _, e := range entries {
		stats[e.category] = model.CacheStat{
			Count:      len(e.entry.Articles),
			AgeSeconds: now.Sub(e.entry.CreatedAt).Seconds(),
			Expired:    e.entry.Expired(now),
		}
	}

	return stats
}

func (s *Store) load(ctx context.Context, category string) (model.CacheEntry, bool) {
	data, err := s.kv.Get(ctx, keyPrefix+category)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.WarnContext(ctx, "cache read failed", "category", category, "error", err)
		}
		return model.CacheEntry{}, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.WarnContext(ctx, "cache entry unreadable", "category", category, "error", err)
		return model.CacheEntry{}, false
	}

	return entry, true
}

type storedEntry struct {
	key      string
	category string
	entry    model.CacheEntry
}

func (s *Store) entries(ctx context.Context) ([]storedEntry, error) {
	var out []storedEntry
	err := s.kv.Iterate(ctx, keyPrefix, func(key string, value []byte) error {
		var entry model.CacheEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			// Unreadable entries sort first and are evicted first.
			entry = model.CacheEntry{}
		}
		out = append(out, storedEntry{
			key:      key,
			category: strings.TrimPrefix(key, keyPrefix),
			entry:    entry,
		})
		return nil
	})

	return out, err
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.kv.Iterate(ctx, keyPrefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})

	return keys, err
}

// enforceCapacity evicts oldest-created entries until at most maxEntries remain.
// keep is never evicted.
func (s *Store) enforceCapacity(ctx context.Context, keep string) error {
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) <= s.maxEntries {
		return nil
	}

	sortOldestFirst(entries)

	excess := len(entries) - s.maxEntries
	for _, e := range entries {
		if excess == 0 {
			break
		}
		if e.key == keep {
			continue
		}
		if err := s.kv.Remove(ctx, e.key); err != nil {
			return err
		}
		s.logger.DebugContext(ctx, "cache evicted entry", "category", e.category)
		excess--
	}

	return nil
}

// evictForRetry drops every expired entry, or the single oldest one when none has expired.
func (s *Store) evictForRetry(ctx context.Context, keep string) error {
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}

	now := s.clock()
	sortOldestFirst(entries)

	removed := 0
	for _, e := range entries {
		if e.key != keep && e.entry.Expired(now) {
			if err := s.kv.Remove(ctx, e.key); err != nil {
				return err
			}
			removed++
		}
	}
	if removed > 0 {
		return nil
	}

	for _, e := range entries {
		if e.key != keep {
			return s.kv.Remove(ctx, e.key)
		}
	}

	return nil
}

func sortOldestFirst(entries []storedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].entry.CreatedAt.Before(entries[j].entry.CreatedAt)
	})
}
