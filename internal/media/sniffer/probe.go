package sniffer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

type Info struct {
	Result
	Width  int
	Height int
}

// Probe detects the format and decodes only the image header to report dimensions.
// AVIF has no registered decoder, so its dimensions stay zero.
func Probe(data []byte) (Info, error) {
	result, err := DetectHead(head(data))
	if err != nil {
		return Info{}, err
	}

	info := Info{Result: result}
	if result.Type == TypeAVIF {
		return info, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return info, fmt.Errorf("decode %s header: %w", result.Type, err)
	}
	info.Width = cfg.Width
	info.Height = cfg.Height
	return info, nil
}

func (r Result) Extension() string {
	if r.Type == TypeJPEG {
		return "jpg"
	}
	return string(r.Type)
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}
