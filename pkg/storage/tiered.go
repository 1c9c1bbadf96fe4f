package storage

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// TieredStore reads the local tier first and writes through to both.
type TieredStore struct {
	local  Store
	remote Store
	log    logrus.FieldLogger
}

// NewTieredStore fronts remote with local.
func NewTieredStore(local, remote Store) *TieredStore {
	return &TieredStore{local: local, remote: remote, log: logrus.StandardLogger()}
}

// Get returns a local hit, else a remote hit which is copied locally.
// Remote failures degrade to a miss.
func (s *TieredStore) Get(ctx context.Context, key string) (*FileAnalysis, error) {
	if a, err := s.local.Get(ctx, key); err == nil {
		return a, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return nil, err
	}
	a, err := s.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.WithError(err).WithField("key", key).Warn("remote analysis cache unavailable")
		}
		return nil, ErrCacheMiss
	}
	_ = s.local.Set(ctx, key, a)
	return a, nil
}

// Set writes to both tiers; a remote failure is logged, not returned.
func (s *TieredStore) Set(ctx context.Context, key string, analysis *FileAnalysis) error {
	if err := s.local.Set(ctx, key, analysis); err != nil {
		return err
	}
	if err := s.remote.Set(ctx, key, analysis); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to write remote analysis cache")
	}
	return nil
}

// Stats counts hits on either tier and misses on both; items are local.
func (s *TieredStore) Stats(ctx context.Context) (*Stats, error) {
	local, err := s.local.Stats(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := s.remote.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{Hits: local.Hits + remote.Hits, Misses: remote.Misses, ItemCount: local.ItemCount}
	if total := out.Hits + out.Misses; total > 0 {
		out.HitRate = float64(out.Hits) / float64(total)
	}
	return out, nil
}

// Ping checks the remote tier when it supports it.
func (s *TieredStore) Ping(ctx context.Context) error {
	if p, ok := s.remote.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes both tiers.
func (s *TieredStore) Close() error {
	return errors.Join(s.local.Close(), s.remote.Close())
}
