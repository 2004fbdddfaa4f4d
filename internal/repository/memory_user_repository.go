package repository

import (
	"context"
	"sync"
	"time"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs the memory
// database driver and service tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	now   func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) (models.User, error) {
	image, err := imageColumn(user.Image)
	if err != nil {
		return models.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return models.User{}, ErrDuplicateUser
	}
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Image = imagecodec.FromBuffer(cloneBytes(image))
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) UpdateImage(_ context.Context, id string, image []byte) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	user.Image = imagecodec.FromBuffer(cloneBytes(image))
	user.UpdatedAt = r.now().UTC()
	r.users[id] = user
	return user, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
