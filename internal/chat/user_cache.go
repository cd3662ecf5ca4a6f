package chat

import (
	"context"
	"sync"

	"github.com/geocoder89/chathub/internal/cache"
	"github.com/geocoder89/chathub/internal/domain/user"
)

// cachedUserStore serves GetByID from a short TTL cache. Writes made through
// it evict the entry; writes from other instances show up after the TTL.
//
// gen counts invalidations. A read that overlapped one does not fill the
// cache, so a pre-update copy cannot be stored after the writer's eviction.
type cachedUserStore struct {
	UserStore
	cache *cache.Cache[string, user.User]

	mu  sync.Mutex
	gen uint64
}

func NewCachedUserStore(inner UserStore, c *cache.Cache[string, user.User]) UserStore {
	if c == nil {
		return inner
	}
	return &cachedUserStore{UserStore: inner, cache: c}
}

func (s *cachedUserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	if u, ok := s.cache.Get(id); ok {
		return u, nil
	}

	s.mu.Lock()
	start := s.gen
	s.mu.Unlock()

	u, err := s.UserStore.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	if s.gen == start {
		s.cache.Set(id, u)
	}
	s.mu.Unlock()

	return u, nil
}

func (s *cachedUserStore) Update(ctx context.Context, u user.User) (user.User, error) {
	s.invalidate(u.ID)

	updated, err := s.UserStore.Update(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	s.invalidate(u.ID)
	return updated, nil
}

func (s *cachedUserStore) Delete(ctx context.Context, id string) error {
	s.invalidate(id)
	err := s.UserStore.Delete(ctx, id)
	s.invalidate(id)
	return err
}

func (s *cachedUserStore) invalidate(id string) {
	s.mu.Lock()
	s.gen++
	s.cache.Delete(id)
	s.mu.Unlock()
}
