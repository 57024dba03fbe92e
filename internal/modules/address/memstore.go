// README: In-memory address store for tests and single-node development.
package address

import (
	"context"
	"sync"
	"time"

	"laoyou/internal/types"
)

// MemStore is a mutex-guarded Store. Suitable for tests; keeps the same
// default-flag atomicity as the SQL implementation.
type MemStore struct {
	mu        sync.Mutex
	addrs     map[types.ID]*CommonAddress
	dests     map[types.ID]*QuickDestination
	favorites map[types.ID]map[types.ID]time.Time // userID -> destID -> last used
}

func NewMemStore() *MemStore {
	return &MemStore{
		addrs:     make(map[types.ID]*CommonAddress),
		dests:     make(map[types.ID]*QuickDestination),
		favorites: make(map[types.ID]map[types.ID]time.Time),
	}
}

func (s *MemStore) Insert(_ context.Context, a *CommonAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.addrs[a.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*CommonAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addrs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) ListByUser(_ context.Context, userID types.ID) ([]CommonAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CommonAddress
	for _, a := range s.addrs {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sortAddresses(out)
	return out, nil
}

func (s *MemStore) SetDefault(_ context.Context, userID, id types.ID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.addrs[id]
	if !ok {
		return ErrNotFound
	}
	if target.UserID != userID {
		return ErrForbidden
	}
	for _, a := range s.addrs {
		if a.UserID == userID && a.IsDefault {
			a.IsDefault = false
			a.UpdatedAt = now
		}
	}
	target.IsDefault = true
	target.UpdatedAt = now
	return nil
}

func (s *MemStore) TouchLastUsed(_ context.Context, id types.ID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.addrs[id]; ok {
		a.LastUsedAt = now
		a.UpdatedAt = now
	}
	return nil
}

func (s *MemStore) GetQuickDestination(_ context.Context, id types.ID) (*QuickDestination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemStore) TouchFavorite(_ context.Context, userID, destID types.ID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if favs, ok := s.favorites[userID]; ok {
		if _, ok := favs[destID]; ok {
			favs[destID] = now
		}
	}
	return nil
}

// SeedQuickDestination registers a curated destination.
func (s *MemStore) SeedQuickDestination(d QuickDestination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.dests[d.ID] = &cp
}

// SeedFavorite marks a destination as favorited by a user.
func (s *MemStore) SeedFavorite(userID, destID types.ID, lastUsed time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.favorites[userID] == nil {
		s.favorites[userID] = make(map[types.ID]time.Time)
	}
	s.favorites[userID][destID] = lastUsed
}

// FavoriteLastUsed reports the favorite marker; test helper.
func (s *MemStore) FavoriteLastUsed(userID, destID types.ID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	favs, ok := s.favorites[userID]
	if !ok {
		return time.Time{}, false
	}
	t, ok := favs[destID]
	return t, ok
}

// sortAddresses orders default first, then priority (1 highest), then most
// recently used. Insertion sort is fine for the handful of addresses a user
// keeps.
func sortAddresses(items []CommonAddress) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && addressLess(key, items[j]) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

func addressLess(a, b CommonAddress) bool {
	if a.IsDefault != b.IsDefault {
		return a.IsDefault
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.LastUsedAt.After(b.LastUsedAt)
}
