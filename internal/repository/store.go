package repository

import (
	"context"
	"errors"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// UserStore persists portrait subjects. Implementations return ErrUserNotFound
// for unknown ids and ErrDuplicateUser when Create hits an existing id.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, user models.User) (models.User, error)
	UpdateImage(ctx context.Context, id string, image []byte) (models.User, error)
}

func imageColumn(p imagecodec.Payload) ([]byte, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.Bytes()
}
