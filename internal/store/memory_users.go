package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meujardineiro/backend/internal/session"
	"github.com/meujardineiro/backend/internal/user"
)

type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*user.User
	now   func() time.Time
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*user.User), now: time.Now}
}

func (s *MemoryUsers) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
		if u.CPFCNPJ != "" && existing.CPFCNPJ == u.CPFCNPJ {
			return user.ErrDocumentTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *MemoryUsers) Get(_ context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *MemoryUsers) Update(_ context.Context, id string, p user.Update) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	p.Apply(u)
	u.UpdatedAt = s.now()
	return u.Clone(), nil
}

func (s *MemoryUsers) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.Active = active
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUsers) SetPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUsers) SetRoleByEmail(_ context.Context, email string, role session.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			u.Role = role
			u.UpdatedAt = s.now()
			return nil
		}
	}
	return user.ErrNotFound
}

func (s *MemoryUsers) SetProviderStats(_ context.Context, providerID string, rating float64, totalServices int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[providerID]
	if !ok {
		return user.ErrNotFound
	}
	u.Rating = rating
	u.TotalServices = totalServices
	return nil
}

// List returns users newest first and the total before paging.
func (s *MemoryUsers) List(_ context.Context, f user.ListFilter) ([]user.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []user.User
	for _, u := range s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		all = append(all, *u.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	offset := max(f.Offset, 0)
	if offset >= total {
		return []user.User{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Limit < total-offset {
		end = offset + f.Limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryUsers) CountByRole(_ context.Context) (map[session.Role]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[session.Role]int)
	for _, u := range s.users {
		counts[u.Role]++
	}
	return counts, nil
}
