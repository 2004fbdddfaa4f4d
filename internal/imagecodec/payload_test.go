package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"
)

var pngHead = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x01, 0xfe}

func TestBufferIsReturnedUnchanged(t *testing.T) {
	p := FromBuffer(pngHead)
	got, err := p.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, pngHead) {
		t.Fatalf("buffer changed: %v", got)
	}
	again, err := FromBuffer(got).Bytes()
	if err != nil || !bytes.Equal(again, got) {
		t.Fatalf("normalizing twice changed bytes: %v %v", again, err)
	}
}

func TestBase64RoundTrip(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHead)
	got, err := FromBase64(encoded).Base64()
	if err != nil {
		t.Fatalf("Base64: %v", err)
	}
	if got != encoded {
		t.Fatalf("expected %q, got %q", encoded, got)
	}
}

func TestDataURI(t *testing.T) {
	uri, err := FromBuffer(pngHead).DataURI()
	if err != nil {
		t.Fatalf("DataURI: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %s", uri)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, pngHead) {
		t.Fatalf("data uri does not decode to stored bytes")
	}
}

func TestEveryShapeYieldsSameBytes(t *testing.T) {
	seq := make([]int, len(pngHead))
	values := make(map[string]int, len(pngHead))
	for i, b := range pngHead {
		seq[i] = int(b)
		values[strconv.Itoa(i)] = int(b)
	}

	tests := []struct {
		name string
		p    Payload
		kind Kind
	}{
		{"buffer", FromBuffer(pngHead), KindBuffer},
		{"sequence", FromByteSequence(seq), KindByteSequence},
		{"wrapper", FromWrapper("data", seq), KindWrapper},
		{"base64", FromBase64(base64.StdEncoding.EncodeToString(pngHead)), KindBase64},
		{"data uri", FromBase64("data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHead)), KindBase64},
		{"values", FromValues(values), KindValues},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.p.Kind() != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, tt.p.Kind())
			}
			got, err := tt.p.Bytes()
			if err != nil {
				t.Fatalf("Bytes: %v", err)
			}
			if !bytes.Equal(got, pngHead) {
				t.Fatalf("expected %v, got %v", pngHead, got)
			}
		})
	}
}

func TestFromStoredClassifies(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  Kind
		field string
	}{
		{"png bytes", string(pngHead), KindBuffer, ""},
		{"json array", "[137,80,78,71]", KindByteSequence, ""},
		{"buffer wrapper", `{"type":"Buffer","data":[137,80,78,71]}`, KindWrapper, "data"},
		{"base64 text", base64.StdEncoding.EncodeToString(pngHead), KindBase64, ""},
		{"index object", `{"0":137,"1":80,"2":78,"3":71}`, KindValues, ""},
		{"opaque", "\x00\x01not-base64!", KindBuffer, ""},
		{"wrapper without data", `{"type":"Buffer"}`, KindUnknown, ""},
		{"mixed array", `[1,"x",3]`, KindUnknown, ""},
		{"wrapper with string data", `{"type":"Buffer","data":"abc"}`, KindUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromStored([]byte(tt.raw))
			if p.Kind() != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, p.Kind())
			}
			if p.Shape().Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, p.Shape().Field)
			}
		})
	}
}

func TestFromStoredLegacyShapesDecodeToPNGHead(t *testing.T) {
	want := []byte{137, 80, 78, 71}
	for _, raw := range []string{
		"[137,80,78,71]",
		`{"type":"Buffer","data":[137,80,78,71]}`,
		`{"3":71,"0":137,"2":78,"1":80}`,
	} {
		got, err := FromStored([]byte(raw)).Bytes()
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s: expected %v, got %v", raw, want, got)
		}
	}
}

func TestZeroPayload(t *testing.T) {
	for _, p := range []Payload{{}, FromBuffer(nil), FromStored(nil), FromByteSequence(nil)} {
		if !p.IsZero() {
			t.Fatalf("expected zero payload, got %s", p.Kind())
		}
	}
}

func TestDecodeErrorsCarryShape(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want error
	}{
		{"out of range", FromByteSequence([]int{1, 256}), ErrByteRange},
		{"negative", FromWrapper("data", []int{-1}), ErrByteRange},
		{"bad keys", FromValues(map[string]int{"a": 1}), ErrValueKeys},
		{"empty buffer", FromBuffer([]byte{}), ErrEmpty},
		{"empty wrapper", FromWrapper("data", nil), ErrEmpty},
		{"none", Payload{}, ErrEmpty},
		{"unrecognized object", FromStored([]byte(`{"type":"Buffer"}`)), ErrUnrecognized},
		{"unrecognized array", FromStored([]byte(`[1,"x",3]`)), ErrUnrecognized},
		{"wrapper with string data", FromStored([]byte(`{"type":"Buffer","data":"abc"}`)), ErrUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Bytes()
			var decodeErr *ImageDecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected ImageDecodeError, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if decodeErr.Shape.Kind != tt.p.Kind() {
				t.Fatalf("shape kind mismatch: %s vs %s", decodeErr.Shape.Kind, tt.p.Kind())
			}
		})
	}
}

func TestUnrecognizedJSONIsNeverServed(t *testing.T) {
	raw := []byte(` {"type":"Buffer"} `)
	p := FromStored(raw)
	if uri, err := p.DataURI(); err == nil {
		t.Fatalf("expected decode error, got %q", uri)
	}
	shape := p.Shape()
	if shape.Length != len(raw) || shape.BufferPreview != string(raw) {
		t.Fatalf("unexpected shape %+v", shape)
	}
}

func TestInvalidBase64(t *testing.T) {
	_, err := FromBase64("not base64 at all!").DataURI()
	var decodeErr *ImageDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ImageDecodeError, got %v", err)
	}
	if decodeErr.Shape.Kind != KindBase64 {
		t.Fatalf("unexpected kind %s", decodeErr.Shape.Kind)
	}
}

func TestShapePreviews(t *testing.T) {
	seq := make([]int, 40)
	shape := FromByteSequence(seq).Shape()
	if !shape.IsArray || shape.IsBuffer {
		t.Fatalf("unexpected flags: %+v", shape)
	}
	if shape.Length != 40 || len(shape.ArrayPreview) != 20 {
		t.Fatalf("unexpected preview: len=%d preview=%d", shape.Length, len(shape.ArrayPreview))
	}

	buf := bytes.Repeat([]byte{0xff}, 100)
	shape = FromBuffer(buf).Shape()
	if !shape.IsBuffer || shape.Length != 100 || len(shape.BufferPreview) != 50 {
		t.Fatalf("unexpected buffer shape: %+v", shape)
	}
}
