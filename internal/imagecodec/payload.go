// Package imagecodec normalizes stored portrait payloads into canonical bytes.
//
// The image column has been written by several drivers over time, so a stored
// value may be raw bytes, a JSON array of byte values, a serialized buffer
// wrapper, base64 text, or an index-keyed object. Payload is a closed union over
// those shapes; constructors are called at the storage boundary and nothing
// downstream probes types at runtime.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gradportrait/internal/media/sniffer"
)

type Kind string

const (
	KindNone         Kind = "none"
	KindBuffer       Kind = "buffer"
	KindByteSequence Kind = "byte_sequence"
	KindWrapper      Kind = "wrapper"
	KindBase64       Kind = "base64"
	KindValues       Kind = "values"
	KindUnknown      Kind = "unknown"
)

const dataURIPrefix = "data:image/png;base64,"

var (
	ErrEmpty        = errors.New("empty image payload")
	ErrByteRange    = errors.New("byte value out of range")
	ErrValueKeys    = errors.New("object keys are not byte offsets")
	ErrUnrecognized = errors.New("structured payload matches no known image shape")
	wrapperFields   = []string{"data", "bytes", "buffer"}
	base64Encoding  = base64.StdEncoding
)

type Payload struct {
	kind   Kind
	buf    []byte
	seq    []int
	field  string
	text   string
	values map[string]int
}

func FromBuffer(b []byte) Payload {
	if b == nil {
		return Payload{}
	}
	return Payload{kind: KindBuffer, buf: b}
}

func FromByteSequence(seq []int) Payload {
	if seq == nil {
		return Payload{}
	}
	return Payload{kind: KindByteSequence, seq: seq}
}

// FromWrapper holds a byte sequence that was found under a named field, e.g. the
// {"type":"Buffer","data":[...]} form.
func FromWrapper(field string, seq []int) Payload {
	return Payload{kind: KindWrapper, field: field, seq: seq}
}

func FromBase64(text string) Payload {
	return Payload{kind: KindBase64, text: text}
}

func FromValues(values map[string]int) Payload {
	if values == nil {
		return Payload{}
	}
	return Payload{kind: KindValues, values: values}
}

// FromStored classifies raw column content. Recognized image bytes win, then a
// byte-value array, a wrapper object, base64 text, and finally an index-keyed
// object. JSON content matching none of those is KindUnknown and never decodes;
// other unrecognized content is kept as an opaque buffer.
func FromStored(raw []byte) Payload {
	if len(raw) == 0 {
		return Payload{}
	}
	if _, err := sniffer.DetectHead(raw); err == nil {
		return FromBuffer(raw)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FromBuffer(raw)
	}

	switch trimmed[0] {
	case '[':
		var seq []int
		if err := json.Unmarshal(trimmed, &seq); err == nil {
			return FromByteSequence(seq)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for _, field := range wrapperFields {
				rawSeq, ok := obj[field]
				if !ok {
					continue
				}
				var seq []int
				if err := json.Unmarshal(rawSeq, &seq); err == nil {
					return FromWrapper(field, seq)
				}
			}
			var values map[string]int
			if err := json.Unmarshal(trimmed, &values); err == nil {
				return FromValues(values)
			}
		}
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		return Payload{kind: KindUnknown, buf: raw}
	}

	if text := string(trimmed); looksLikeBase64(text) {
		return FromBase64(text)
	}
	return FromBuffer(raw)
}

func (p Payload) Kind() Kind {
	if p.kind == "" {
		return KindNone
	}
	return p.kind
}

func (p Payload) IsZero() bool {
	return p.Kind() == KindNone
}

// Bytes returns the canonical byte sequence. A buffer payload is returned as is.
func (p Payload) Bytes() ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch p.Kind() {
	case KindBuffer:
		out = p.buf
	case KindByteSequence, KindWrapper:
		out, err = bytesFromSequence(p.seq)
	case KindBase64:
		out, err = decodeBase64(p.text)
	case KindValues:
		out, err = bytesFromValues(p.values)
	case KindUnknown:
		err = ErrUnrecognized
	}
	if err != nil {
		return nil, &ImageDecodeError{Shape: p.Shape(), Err: err}
	}
	if len(out) == 0 {
		return nil, &ImageDecodeError{Shape: p.Shape(), Err: ErrEmpty}
	}
	return out, nil
}

func (p Payload) Base64() (string, error) {
	data, err := p.Bytes()
	if err != nil {
		return "", err
	}
	return base64Encoding.EncodeToString(data), nil
}

func (p Payload) DataURI() (string, error) {
	encoded, err := p.Base64()
	if err != nil {
		return "", err
	}
	return DataURI(encoded), nil
}

func DataURI(encoded string) string {
	return dataURIPrefix + encoded
}

func bytesFromSequence(seq []int) ([]byte, error) {
	out := make([]byte, len(seq))
	for i, v := range seq {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: %d at offset %d", ErrByteRange, v, i)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func bytesFromValues(values map[string]int) ([]byte, error) {
	type entry struct{ offset, value int }
	entries := make([]entry, 0, len(values))
	for key, value := range values {
		offset, err := strconv.Atoi(key)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("%w: %q", ErrValueKeys, key)
		}
		entries = append(entries, entry{offset: offset, value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	seq := make([]int, len(entries))
	for i, e := range entries {
		seq[i] = e.value
	}
	return bytesFromSequence(seq)
}

func decodeBase64(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, ";base64,"); idx >= 0 && strings.HasPrefix(text, "data:") {
		text = text[idx+len(";base64,"):]
	}
	return base64Encoding.DecodeString(text)
}

func looksLikeBase64(text string) bool {
	if text == "" {
		return false
	}
	_, err := decodeBase64(text)
	return err == nil
}
