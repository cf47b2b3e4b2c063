package report

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlog/internal/components"
)

func samplePoints(n int) []components.Position3D {
	pts := make([]components.Position3D, n)
	for i := range pts {
		f := float32(i) / float32(n)
		pts[i] = components.Position3D{X: f*2 - 1, Y: 1 - f*2, Z: f}
	}
	return pts
}

func TestDownsample(t *testing.T) {
	pts := samplePoints(10)

	kept, stride := Downsample(pts, 0)
	assert.Len(t, kept, 10)
	assert.Equal(t, 1, stride)

	kept, stride = Downsample(pts, 20)
	assert.Len(t, kept, 10)
	assert.Equal(t, 1, stride)

	kept, stride = Downsample(pts, 4)
	assert.Equal(t, 3, stride)
	assert.Equal(t, []components.Position3D{pts[0], pts[3], pts[6], pts[9]}, kept)
}

func TestExtent(t *testing.T) {
	pad, minZ, maxZ := extent(nil)
	assert.Equal(t, 1.0, pad)
	assert.Equal(t, 0.0, minZ)
	assert.Equal(t, 1.0, maxZ)

	pad, minZ, maxZ = extent([]components.Position3D{{X: -2, Y: 1, Z: 3}, {X: 1, Y: 0.5, Z: 3}})
	assert.InDelta(t, 2.1, pad, 1e-9)
	assert.Equal(t, 3.0, minZ)
	assert.Equal(t, 4.0, maxZ, "flat Z range is widened")
}

func TestWritePointsPNG(t *testing.T) {
	var buf bytes.Buffer
	opt := DefaultOptions()
	opt.MaxPoints = 100
	require.NoError(t, WritePointsPNG(&buf, samplePoints(1000), opt))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestWritePointsPNGEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePointsPNG(&buf, nil, DefaultOptions()))
	_, err := png.Decode(&buf)
	assert.NoError(t, err)
}

func TestWritePointsHTML(t *testing.T) {
	var buf bytes.Buffer
	opt := DefaultOptions()
	opt.Title = "world/points_from_vector"
	opt.MaxPoints = 50
	require.NoError(t, WritePointsHTML(&buf, samplePoints(200), opt))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "expected an html document")
	assert.Contains(t, html, "world/points_from_vector")
	assert.Contains(t, html, "stride=4")
}

func TestTensorImage(t *testing.T) {
	dims := func(h, w, d uint64) []components.TensorDimension {
		return []components.TensorDimension{{Size: h, Name: "height"}, {Size: w, Name: "width"}, {Size: d, Name: "depth"}}
	}

	rgb := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30}
	img, err := TensorImage(dims(2, 2, 3), rgb)
	require.NoError(t, err)
	r, g, b, a := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0, 0xffff}, []uint32{r, g, b, a})
	r, g, b, _ = img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{10 * 0x101, 20 * 0x101, 30 * 0x101}, []uint32{r, g, b})

	gray, err := TensorImage(dims(1, 2, 1), []byte{7, 9})
	require.NoError(t, err)
	r, _, _, _ = gray.At(1, 0).RGBA()
	assert.Equal(t, uint32(9*0x101), r)

	_, err = TensorImage(dims(1, 1, 4), []byte{1, 2, 3, 4})
	assert.NoError(t, err)

	_, err = TensorImage(dims(2, 2, 3), rgb[:11])
	assert.Error(t, err)
	_, err = TensorImage(dims(1, 1, 2), []byte{1, 2})
	assert.Error(t, err)
	_, err = TensorImage(dims(1, 1, 1)[:2], []byte{1})
	assert.Error(t, err)
	_, err = TensorImage(dims(1<<32, 1<<32, 1), nil)
	assert.Error(t, err, "wrapped shape must not match empty data")
	_, err = TensorImage(dims(1<<31-1, 1<<31-1, 1<<31-1), make([]byte, 1))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTensorPNG(&buf, dims(2, 2, 3), rgb))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Bounds().Dx())
}
