package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeSweeper struct {
	age   time.Duration
	calls int
}

func (s *fakeSweeper) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	s.calls++
	s.age = maxAge
	return 3, nil
}

type fakeContent map[string][]byte

func (c fakeContent) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := c[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

type fakeMirror struct {
	keys     []string
	metadata map[string]string
}

func (m *fakeMirror) PutPortrait(_ context.Context, key string, data []byte, metadata map[string]string) (int64, error) {
	m.keys = append(m.keys, key)
	m.metadata = metadata
	return int64(len(data)), nil
}

func TestProcessorSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	p := NewProcessor(zerolog.Nop(), sweeper, time.Hour, fakeContent{}, nil)

	msg := redis.XMessage{ID: "1-0", Values: TaskPayload{Type: TypeSweepUploads}.Values()}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sweeper.calls != 1 || sweeper.age != time.Hour {
		t.Fatalf("unexpected sweep: %+v", sweeper)
	}
}

func TestProcessorMirror(t *testing.T) {
	mirror := &fakeMirror{}
	content := fakeContent{"Ana_graduado_1.png": []byte("png")}
	p := NewProcessor(zerolog.Nop(), &fakeSweeper{}, time.Hour, content, mirror)

	msg := redis.XMessage{ID: "2-0", Values: map[string]interface{}{
		"type":   TypeMirrorPortrait,
		"userId": "123",
		"key":    "Ana_graduado_1.png",
	}}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(mirror.keys) != 1 || mirror.keys[0] != "Ana_graduado_1.png" || mirror.metadata["user-id"] != "123" {
		t.Fatalf("unexpected mirror call: %+v", mirror)
	}

	missing := redis.XMessage{ID: "3-0", Values: map[string]interface{}{"type": TypeMirrorPortrait, "key": "gone.png"}}
	if err := p.Handle(context.Background(), missing); err == nil {
		t.Fatal("expected error for missing content")
	}
}

func TestProcessorMirrorDisabled(t *testing.T) {
	p := NewProcessor(zerolog.Nop(), &fakeSweeper{}, time.Hour, fakeContent{}, nil)
	msg := redis.XMessage{ID: "4-0", Values: TaskPayload{Type: TypeMirrorPortrait, Key: "x.png"}.Values()}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}

func TestProcessorUnknownType(t *testing.T) {
	p := NewProcessor(zerolog.Nop(), &fakeSweeper{}, time.Hour, fakeContent{}, nil)
	msg := redis.XMessage{ID: "5-0", Values: map[string]interface{}{"type": "thumbnail"}}
	if err := p.Handle(context.Background(), msg); err != nil {
		t.Fatalf("unknown types are acknowledged, got %v", err)
	}
}

func TestTaskPayloadValues(t *testing.T) {
	values := TaskPayload{Type: TypeSweepUploads}.Values()
	if len(values) != 1 || values["type"] != TypeSweepUploads {
		t.Fatalf("unexpected values %v", values)
	}
}
