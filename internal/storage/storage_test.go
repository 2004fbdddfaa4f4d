package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var pngData = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0x01}, 64)...)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"Ana_graduado_1.png", "Ana_graduado_1.png", false},
		{"/abs/file.png", "abs/file.png", false},
		{"./nested\\file.png", "nested/file.png", false},
		{"../escape.png", "", true},
		{"a/../../escape.png", "", true},
		{"  ", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Fatalf("sanitizeKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestFileStoreCreatesDirectoryOnWrite(t *testing.T) {
	base := filepath.Join(t.TempDir(), "generated")
	store, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Fatalf("directory created too early: %v", err)
	}

	path, err := store.Write(context.Background(), "x.png", pngData)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != filepath.Join(base, "x.png") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := store.Read(context.Background(), "x.png")
	if err != nil || !bytes.Equal(data, pngData) {
		t.Fatalf("Read mismatch: %v", err)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Ana María":          "Ana_Maria",
		"  José   Ñandú  ":   "Jose_Nandu",
		"../../etc/passwd":   "etcpasswd",
		"Juan\tCarlos\nPaz":  "Juan_Carlos_Paz",
		"":                   "portrait",
		"日本":                 "portrait",
		"Luis-Fernando_Díaz": "Luis-Fernando_Diaz",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilenames(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := PortraitFilename("Ana María", at); got != "Ana_Maria_graduado_1700000000123.png" {
		t.Fatalf("unexpected portrait filename %s", got)
	}
	first, second := GeneratedFilename(at), GeneratedFilename(at)
	for _, got := range []string{first, second} {
		if !strings.HasPrefix(got, "generated_1700000000123_") || !strings.HasSuffix(got, ".png") {
			t.Fatalf("unexpected generated filename %s", got)
		}
	}
	if first == second {
		t.Fatalf("same-millisecond onboardings share %s", first)
	}
	if _, err := sanitizeKey(first); err != nil {
		t.Fatalf("generated filename rejected as key: %v", err)
	}
}

func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return req.MultipartForm.File["image"][0]
}

func TestUploadSpoolSaveAndDiscard(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewUploadSpool(dir, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUploadSpool: %v", err)
	}

	spooled, err := spool.Save(fileHeader(t, "me.png", pngData))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if spooled.MIME != "image/png" || spooled.Filename != "me.png" || spooled.Size != int64(len(pngData)) {
		t.Fatalf("unexpected spooled file: %+v", spooled)
	}
	if !strings.HasSuffix(spooled.Path, ".png") {
		t.Fatalf("unexpected spool path %s", spooled.Path)
	}
	data, err := spooled.ReadAll()
	if err != nil || !bytes.Equal(data, pngData) {
		t.Fatalf("spooled bytes differ: %v", err)
	}

	spool.Discard(spooled.Path)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(spooled.Path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("spooled file not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUploadSpoolRejects(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewUploadSpool(dir, 32, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUploadSpool: %v", err)
	}

	if _, err := spool.Save(fileHeader(t, "doc.txt", []byte("just some text"))); err != ErrUnsupportedType {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := spool.Save(fileHeader(t, "big.png", pngData)); err != ErrUploadTooLarge {
		t.Fatalf("expected ErrUploadTooLarge, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %d", len(entries))
	}
}

func TestUploadSpoolSweep(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewUploadSpool(dir, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUploadSpool: %v", err)
	}

	stale := filepath.Join(dir, "stale.png")
	fresh := filepath.Join(dir, "fresh.png")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, pngData, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := spool.Sweep(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
}
