package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/models"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteUserRepository stores users through modernc.org/sqlite. Older rows may
// hold the image as TEXT, so the column is scanned without a fixed Go type.
type SQLiteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, now: time.Now}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, name, gender, career, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	image, err := imageColumn(user.Image)
	if err != nil {
		return models.User{}, err
	}

	var imageArg any
	if image != nil {
		imageArg = image
	}

	now := r.now().UTC()
	stamp := now.Format(sqliteTimeLayout)
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Gender, user.Career, imageArg, stamp, stamp)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if affected == 0 {
		return models.User{}, ErrDuplicateUser
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, name, gender, career, image, created_at, updated_at
		FROM users WHERE id = ?
	`

	var (
		user               models.User
		image              any
		createdAt, updated string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Gender,
		&user.Career,
		&image,
		&createdAt,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	user.Image = payloadFromColumn(image)
	user.CreatedAt = parseSQLiteTime(createdAt)
	user.UpdatedAt = parseSQLiteTime(updated)
	return user, nil
}

func (r *SQLiteUserRepository) UpdateImage(ctx context.Context, id string, image []byte) (models.User, error) {
	const query = `UPDATE users SET image = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, image, r.now().UTC().Format(sqliteTimeLayout), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, fmt.Errorf("update image: %w", err)
	}
	if affected == 0 {
		return models.User{}, ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func payloadFromColumn(v any) imagecodec.Payload {
	switch value := v.(type) {
	case []byte:
		return imagecodec.FromStored(value)
	case string:
		if value == "" {
			return imagecodec.Payload{}
		}
		// TEXT content is classified the same way as bytes so JSON shapes
		// written by other drivers still decode.
		return imagecodec.FromStored([]byte(value))
	default:
		return imagecodec.Payload{}
	}
}

func parseSQLiteTime(v string) time.Time {
	for _, layout := range []string{sqliteTimeLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
