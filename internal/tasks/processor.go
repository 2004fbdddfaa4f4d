package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TypeSweepUploads   = "sweep_uploads"
	TypeMirrorPortrait = "mirror_portrait"
)

type TaskPayload struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Key    string `json:"key,omitempty"`
}

// Values flattens the payload into stream fields.
func (p TaskPayload) Values() map[string]any {
	values := map[string]any{"type": p.Type}
	if p.UserID != "" {
		values["userId"] = p.UserID
	}
	if p.Key != "" {
		values["key"] = p.Key
	}
	return values
}

type UploadSweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

type ContentReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

type PortraitMirror interface {
	PutPortrait(ctx context.Context, key string, data []byte, metadata map[string]string) (int64, error)
}

type Processor struct {
	logger   zerolog.Logger
	uploads  UploadSweeper
	sweepAge time.Duration
	content  ContentReader
	mirror   PortraitMirror
}

// NewProcessor handles background tasks. mirror may be nil, in which case
// mirror tasks are acknowledged and skipped.
func NewProcessor(logger zerolog.Logger, uploads UploadSweeper, sweepAge time.Duration, content ContentReader, mirror PortraitMirror) *Processor {
	return &Processor{
		logger:   logger,
		uploads:  uploads,
		sweepAge: sweepAge,
		content:  content,
		mirror:   mirror,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case TypeSweepUploads:
		return p.handleSweep(ctx)
	case TypeMirrorPortrait:
		return p.handleMirror(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSweep(ctx context.Context) error {
	removed, err := p.uploads.Sweep(ctx, p.sweepAge)
	if err != nil {
		return fmt.Errorf("sweep uploads: %w", err)
	}
	p.logger.Info().Int("removed", removed).Dur("max_age", p.sweepAge).Msg("stale uploads swept")
	return nil
}

func (p *Processor) handleMirror(ctx context.Context, payload TaskPayload) error {
	if p.mirror == nil {
		p.logger.Debug().Str("key", payload.Key).Msg("object storage disabled, mirror skipped")
		return nil
	}
	if payload.Key == "" {
		return errors.New("mirror task without key")
	}

	data, err := p.content.Read(ctx, payload.Key)
	if err != nil {
		return fmt.Errorf("read portrait: %w", err)
	}
	size, err := p.mirror.PutPortrait(ctx, payload.Key, data, map[string]string{"user-id": payload.UserID})
	if err != nil {
		return err
	}
	p.logger.Info().
		Str("user_id", payload.UserID).
		Str("key", payload.Key).
		Int64("size", size).
		Msg("portrait mirrored")
	return nil
}
