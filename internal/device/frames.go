package device

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"
)

// FrameSource produces frames for the emulator.
type FrameSource interface {
	Frame() (Frame, error)
}

// Synthetic renders a moving test pattern as JPEG. The zero value is not
// usable; call NewSynthetic.
type Synthetic struct {
	width, height int
	quality       int
	boot          time.Time

	mu  sync.Mutex
	seq int
}

// NewSynthetic returns a source of width x height frames.
func NewSynthetic(width, height, quality int) *Synthetic {
	return &Synthetic{width: width, height: height, quality: quality, boot: time.Now()}
}

// Frame renders the next pattern. Timestamps count from construction, as the
// firmware's count from boot.
func (s *Synthetic) Frame() (Frame, error) {
	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	bar := seq % s.width
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / s.width),
				G: uint8(y * 255 / s.height),
				B: uint8(seq * 7),
				A: 255,
			}
			if x >= bar && x < bar+4 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return Frame{}, fmt.Errorf("encoding frame %d: %w", seq, err)
	}
	return Frame{JPEG: buf.Bytes(), Timestamp: time.Since(s.boot)}, nil
}
