package repository

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"gradportrait/internal/imagecodec"
	"gradportrait/internal/models"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = r.values[i].(string)
		case *[]byte:
			if r.values[i] != nil {
				*ptr = r.values[i].([]byte)
			}
		case *time.Time:
			*ptr = r.values[i].(time.Time)
		}
	}
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	query string
	args  []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.query = sql
	q.args = args
	return q.row
}

func TestUserRepositoryFindByIDNormalizesImage(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{
		"123", "Ana", "female", "Arquitecta", []byte(`{"type":"Buffer","data":[137,80,78,71]}`), now, now,
	}}}
	repo := NewUserRepository(q)

	user, err := repo.FindByID(context.Background(), "123")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if q.args[0] != "123" {
		t.Fatalf("unexpected args: %v", q.args)
	}
	if user.Image.Kind() != imagecodec.KindWrapper {
		t.Fatalf("expected wrapper payload, got %s", user.Image.Kind())
	}
	got, err := user.Image.Bytes()
	if err != nil || !bytes.Equal(got, []byte{137, 80, 78, 71}) {
		t.Fatalf("unexpected bytes %v (%v)", got, err)
	}
}

func TestUserRepositoryNullImage(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{"1", "Juan", "male", "Civil", nil, now, now}}}
	user, err := NewUserRepository(q).FindByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if user.HasImage() {
		t.Fatalf("expected no image, got %s", user.Image.Kind())
	}
}

func TestUserRepositoryNotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewUserRepository(q)

	if _, err := repo.FindByID(context.Background(), "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.UpdateImage(context.Background(), "x", []byte{1}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewUserRepository(q).Create(context.Background(), models.User{ID: "123", Name: "Ana"})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
	if !strings.Contains(q.query, "ON CONFLICT (id) DO NOTHING") {
		t.Fatalf("insert does not guard duplicates: %s", q.query)
	}
}

func TestUserRepositoryCreatePassesImageBytes(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{now, now}}}
	user, err := NewUserRepository(q).Create(context.Background(), models.User{
		ID:    "123",
		Name:  "Ana",
		Image: imagecodec.FromBase64("iVBORw=="),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !user.CreatedAt.Equal(now) {
		t.Fatalf("timestamps not scanned")
	}
	image, ok := q.args[4].([]byte)
	if !ok || !bytes.Equal(image, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("expected decoded image bytes, got %#v", q.args[4])
	}
}
