// Package imaging loads images into a flat interleaved byte matrix.
//
// Decoded images use BGR channel order, matching the convention of common
// computer vision libraries. Call CvtColorBGRToRGB before logging, since
// recordings expect RGB.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrEmptyImage is returned when a decoded image has no pixels.
var ErrEmptyImage = errors.New("image is empty")

// Mat is an interleaved 8-bit image: Rows x Cols pixels of Channels bytes,
// stored row-major.
type Mat struct {
	Rows     int
	Cols     int
	Channels int
	Data     []byte
}

// NewMat allocates a zeroed image.
func NewMat(rows, cols, channels int) Mat {
	return Mat{Rows: rows, Cols: cols, Channels: channels, Data: make([]byte, rows*cols*channels)}
}

// Total returns the number of pixels.
func (m Mat) Total() int { return m.Rows * m.Cols }

// Empty reports whether the image has no data.
func (m Mat) Empty() bool { return len(m.Data) == 0 }

// Validate checks that the data length matches the dimensions.
func (m Mat) Validate() error {
	if m.Rows < 0 || m.Cols < 0 || m.Channels <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%dx%d", m.Rows, m.Cols, m.Channels)
	}
	if want := m.Total() * m.Channels; len(m.Data) != want {
		return fmt.Errorf("image data length %d does not match %dx%dx%d = %d",
			len(m.Data), m.Rows, m.Cols, m.Channels, want)
	}
	return nil
}

// Read decodes the image file at path into a 3-channel BGR matrix.
func Read(path string) (Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mat{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes an image from r into a 3-channel BGR matrix. Any alpha
// channel is dropped.
func Decode(r io.Reader) (Mat, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Mat{}, fmt.Errorf("failed to decode image: %w", err)
	}
	m := FromImage(img)
	if m.Empty() {
		return Mat{}, ErrEmptyImage
	}
	return m, nil
}

// FromImage converts img into a 3-channel BGR matrix.
func FromImage(img image.Image) Mat {
	b := img.Bounds()
	m := NewMat(b.Dy(), b.Dx(), 3)

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < m.Rows; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < m.Cols; x++ {
				o := (y*m.Cols + x) * 3
				m.Data[o] = row[x*4+2]
				m.Data[o+1] = row[x*4+1]
				m.Data[o+2] = row[x*4]
			}
		}
		return m
	}

	for y := 0; y < m.Rows; y++ {
		for x := 0; x < m.Cols; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			o := (y*m.Cols + x) * 3
			m.Data[o] = c.B
			m.Data[o+1] = c.G
			m.Data[o+2] = c.R
		}
	}
	return m
}

// CvtColorBGRToRGB swaps the first and third channel of every pixel in
// place. The conversion is its own inverse.
func CvtColorBGRToRGB(m Mat) error {
	if m.Channels < 3 {
		return fmt.Errorf("color conversion needs at least 3 channels, got %d", m.Channels)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	for o := 0; o < len(m.Data); o += m.Channels {
		m.Data[o], m.Data[o+2] = m.Data[o+2], m.Data[o]
	}
	return nil
}
