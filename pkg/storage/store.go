package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/modcheck/pkg/hashing"
	"github.com/platinummonkey/modcheck/pkg/project"
)

var (
	// ErrCacheMiss is returned when no analysis is stored under a key.
	ErrCacheMiss = errors.New("cache miss")
	// ErrInvalidKey is returned for empty keys.
	ErrInvalidKey = errors.New("invalid cache key")
)

// SchemaVersion is part of every key; bump it when FileAnalysis or the parsers change.
const SchemaVersion = "2"

// Languages of cached analyses.
const (
	LanguageJava     = "java"
	LanguageKotlin   = "kotlin"
	LanguageResource = "resource"
)

// FileAnalysis is what the source front end extracts from one file.
type FileAnalysis struct {
	Language      string                `json:"language"`
	Package       string                `json:"package,omitempty"`
	Declarations  []project.Declaration `json:"declarations,omitempty"`
	References    []project.Reference   `json:"references,omitempty"`
	Contributions []string              `json:"contributions,omitempty"`
	Merges        []string              `json:"merges,omitempty"`
	Layouts       []string              `json:"layouts,omitempty"`
}

// Key returns the content address of a file.
func Key(language string, content []byte) string {
	return fmt.Sprintf("v%s:%s:%s", SchemaVersion, language, hashing.Hex(content))
}

// Store caches file analyses.
type Store interface {
	Get(ctx context.Context, key string) (*FileAnalysis, error)
	Set(ctx context.Context, key string, analysis *FileAnalysis) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats are cache counters.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	ItemCount int64   `json:"itemCount"`
	HitRate   float64 `json:"hitRate"`
}

// Config selects and sizes a backend.
type Config struct {
	// Type is "memory", "redis" or "none".
	Type     string        `yaml:"type" json:"type"`
	Size     int           `yaml:"size" json:"size"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	RedisURL string        `yaml:"redisURL" json:"redisURL"`
}

// DefaultConfig is an in-memory store of 50k files kept for an hour.
func DefaultConfig() Config {
	return Config{Type: "memory", Size: 50000, TTL: time.Hour}
}

// New opens the configured store. A redis store is fronted by a memory tier.
func New(cfg Config) (Store, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(cfg.Size, cfg.TTL), nil
	case "redis":
		remote, err := NewRedisStore(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return NewTieredStore(NewMemoryStore(cfg.Size, cfg.TTL), remote), nil
	case "none":
		return nopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) stats(items int64) *Stats {
	s := &Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), ItemCount: items}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

type nopStore struct{}

// NewNopStore returns a store that never holds anything.
func NewNopStore() Store { return nopStore{} }

func (nopStore) Get(context.Context, string) (*FileAnalysis, error) { return nil, ErrCacheMiss }
func (nopStore) Set(context.Context, string, *FileAnalysis) error   { return nil }
func (nopStore) Stats(context.Context) (*Stats, error)              { return &Stats{}, nil }
func (nopStore) Close() error                                       { return nil }
