package imagecodec

const (
	arrayPreviewLen  = 20
	bufferPreviewLen = 50
)

type Shape struct {
	Kind          Kind   `json:"kind"`
	Field         string `json:"field,omitempty"`
	IsBuffer      bool   `json:"isBuffer"`
	IsArray       bool   `json:"isArray"`
	Length        int    `json:"length"`
	ArrayPreview  []int  `json:"arrayPreview,omitempty"`
	BufferPreview string `json:"bufferPreview,omitempty"`
}

// Shape describes the stored representation without decoding it.
func (p Payload) Shape() Shape {
	shape := Shape{Kind: p.Kind(), Field: p.field}

	switch p.Kind() {
	case KindBuffer:
		shape.IsBuffer = true
		shape.Length = len(p.buf)
		shape.BufferPreview = truncate(base64Encoding.EncodeToString(p.buf), bufferPreviewLen)
	case KindByteSequence, KindWrapper:
		shape.IsArray = p.Kind() == KindByteSequence
		shape.Length = len(p.seq)
		shape.ArrayPreview = p.seq[:min(len(p.seq), arrayPreviewLen)]
	case KindBase64:
		shape.Length = len(p.text)
		shape.BufferPreview = truncate(p.text, bufferPreviewLen)
	case KindValues:
		shape.Length = len(p.values)
	case KindUnknown:
		shape.Length = len(p.buf)
		shape.BufferPreview = truncate(string(p.buf), bufferPreviewLen)
	}
	return shape
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
