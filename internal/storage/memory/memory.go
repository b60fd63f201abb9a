// Package memory is an account directory kept in process memory. It backs
// the "memory" storage driver for local runs and handler tests; data is lost
// on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
)

type Storage struct {
	mu      sync.RWMutex
	byId    map[domain.UserId]domain.User
	byEmail map[domain.Email]domain.UserId
}

func New() *Storage {
	return &Storage{
		byId:    make(map[domain.UserId]domain.User),
		byEmail: make(map[domain.Email]domain.UserId),
	}
}

func (s *Storage) SaveUser(ctx context.Context, user domain.User) error {
	if user.Id == "" || user.Email == "" || user.Name == "" || user.PassHash == "" {
		return internal_errors.ValidationOrConflict("Invalid user", "id, name, email and password hash are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return internal_errors.ValidationOrConflict("Email already registered", user.Email)
	}
	if _, ok := s.byId[user.Id]; ok {
		return internal_errors.ValidationOrConflict("User already exists", user.Id)
	}
	s.byId[user.Id] = user
	s.byEmail[user.Email] = user.Id
	return nil
}

func (s *Storage) User(ctx context.Context, email domain.Email) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, internal_errors.NotFound("User not found")
	}
	return s.byId[id], nil
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byId[id]
	if !ok {
		return domain.User{}, internal_errors.NotFound("User not found")
	}
	return user, nil
}

func (s *Storage) UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byId[id]
	if !ok {
		return internal_errors.NotFound("User not found for password update")
	}
	user.PassHash = passHash
	s.byId[id] = user
	return nil
}

// Users returns every account ordered by creation time, without hashes.
func (s *Storage) Users(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	users := make([]domain.User, 0, len(s.byId))
	for _, u := range s.byId {
		u.PassHash = ""
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Id < users[j].Id
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Cleanup() error {
	return nil
}
