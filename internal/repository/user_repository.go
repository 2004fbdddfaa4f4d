package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/models"
)

// querier is the subset of pgxpool.Pool used by UserRepository.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	pool querier
}

func NewUserRepository(pool querier) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, name, gender, career, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at
	`

	image, err := imageColumn(user.Image)
	if err != nil {
		return models.User{}, err
	}

	row := r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Gender, user.Career, image)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, name, gender, career, image, created_at, updated_at
		FROM users WHERE id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) UpdateImage(ctx context.Context, id string, image []byte) (models.User, error) {
	const query = `
		UPDATE users SET image = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, gender, career, image, created_at, updated_at
	`
	return scanUser(r.pool.QueryRow(ctx, query, id, image))
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user  models.User
		image []byte
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Gender,
		&user.Career,
		&image,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.Image = imagecodec.FromStored(image)
	return user, nil
}
