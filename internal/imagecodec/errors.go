package imagecodec

import "fmt"

// ImageDecodeError reports a payload that could not be turned into bytes. Shape
// carries what was stored so operators can see which driver wrote it.
type ImageDecodeError struct {
	Shape Shape
	Err   error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode %s image payload: %v", e.Shape.Kind, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}
