package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"gradportrait/internal/ids"
	"gradportrait/internal/media/sniffer"
)

var (
	ErrUploadTooLarge  = errors.New("uploaded file is too large")
	ErrUnsupportedType = errors.New("uploaded file is not a supported image")
)

// Spooled is an uploaded photo written to the upload directory.
type Spooled struct {
	Path     string
	Filename string
	MIME     string
	Size     int64
}

func (s Spooled) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read spooled upload: %w", err)
	}
	return data, nil
}

// UploadSpool stages multipart uploads on disk until a request finishes.
type UploadSpool struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger
}

func NewUploadSpool(dir string, maxBytes int64, log zerolog.Logger) (*UploadSpool, error) {
	if dir == "" {
		return nil, errors.New("storage: upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure upload dir: %w", err)
	}
	return &UploadSpool{dir: dir, maxBytes: maxBytes, log: log}, nil
}

// Save copies the upload to a uniquely named file after checking its magic
// bytes. Files that fail validation are removed before returning.
func (s *UploadSpool) Save(header *multipart.FileHeader) (Spooled, error) {
	if s.maxBytes > 0 && header.Size > s.maxBytes {
		return Spooled{}, ErrUploadTooLarge
	}

	src, err := header.Open()
	if err != nil {
		return Spooled{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	result, head, err := sniffer.Detect(src)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return Spooled{}, ErrUnsupportedType
		}
		return Spooled{}, fmt.Errorf("detect upload type: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s.%s", ids.New(), result.Extension()))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Spooled{}, fmt.Errorf("create spool file: %w", err)
	}

	var body io.Reader = src
	if s.maxBytes > 0 {
		body = io.LimitReader(src, s.maxBytes-int64(len(head))+1)
	}
	written, err := io.Copy(dst, io.MultiReader(bytes.NewReader(head), body))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrUploadTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrUploadTooLarge) {
			return Spooled{}, err
		}
		return Spooled{}, fmt.Errorf("write spool file: %w", err)
	}

	return Spooled{
		Path:     path,
		Filename: filepath.Base(header.Filename),
		MIME:     result.MIME,
		Size:     written,
	}, nil
}

// Discard removes a spooled file in the background. Failures are logged only.
func (s *UploadSpool) Discard(path string) {
	if path == "" {
		return
	}
	go func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("remove spooled upload failed")
		}
	}()
}

// Sweep deletes spooled files last modified before now minus maxAge and
// returns how many were removed.
func (s *UploadSpool) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("file", entry.Name()).Msg("sweep remove failed")
			continue
		}
		removed++
	}
	return removed, nil
}
