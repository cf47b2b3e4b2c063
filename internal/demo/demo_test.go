package demo

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensorlog/internal/archetypes"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/config"
	"github.com/banshee-data/sensorlog/internal/monitoring"
	"github.com/banshee-data/sensorlog/internal/rec"
	"github.com/banshee-data/sensorlog/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// writeTestPNG writes a 2x3 image whose first pixel is pure red.
func writeTestPNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(20 * y), B: 200, A: 255})
		}
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	return testutil.WritePNG(t, t.TempDir(), "logo.png", img)
}

func TestGenerateRandomPoints(t *testing.T) {
	points := GenerateRandomPoints(1000, rand.NewPCG(1, 2))
	require.Len(t, points, 1000)
	for _, p := range points {
		for _, v := range p {
			assert.GreaterOrEqual(t, v, float32(-1))
			assert.LessOrEqual(t, v, float32(1))
		}
	}

	again := GenerateRandomPoints(1000, rand.NewPCG(1, 2))
	assert.Equal(t, points, again, "same seed gives same points")

	assert.Empty(t, GenerateRandomPoints(0, nil))
}

func TestRandomMatrices(t *testing.T) {
	m := RandomMatrixX3(10, rand.NewPCG(3, 4))
	assert.Equal(t, 10, m.Rows())
	assert.True(t, m.Contiguous())

	c := RandomMatrix3X(7, rand.NewPCG(3, 4))
	assert.Equal(t, 7, c.Cols())
	// Same stream of values, so column i of c equals row i of m.
	for i := 0; i < 7; i++ {
		assert.Equal(t, m.Row(i), c.Col(i))
	}
}

func TestProjectionMatrix(t *testing.T) {
	p := ProjectionMatrix(640, 480, 500)
	assert.Equal(t, 500.0, p.At(0, 0))
	assert.Equal(t, 500.0, p.At(1, 1))
	assert.Equal(t, 319.5, p.At(0, 2))
	assert.Equal(t, 239.5, p.At(1, 2))
	assert.Equal(t, 1.0, p.At(2, 2))
	assert.Equal(t, 0.0, p.At(2, 0))
}

func TestCameraPose(t *testing.T) {
	translation, orientation, err := CameraPose()
	require.NoError(t, err)
	assert.Equal(t, components.Vec3D{0, -1, 0}, translation)
	assert.Equal(t, components.Mat3x3{0, 0, 1, 1, 0, 0, 0, 1, 0}, orientation)
	assert.Equal(t, float32(1), orientation.At(0, 1))
	assert.Equal(t, float32(1), orientation.At(1, 2))
	assert.Equal(t, float32(1), orientation.At(2, 0))
}

func TestLoadImage(t *testing.T) {
	img, err := LoadImage(writeTestPNG(t))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Rows)
	assert.Equal(t, 3, img.Cols)
	assert.Equal(t, 3, img.Channels)
	assert.Equal(t, []byte{255, 0, 0}, img.Data[:3], "converted to RGB")
}

func TestLoadImageMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.png")
	_, err := LoadImage(path)

	var loadErr *ImageLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadImageUndecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := LoadImage(path)
	var loadErr *ImageLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func testOptions(t *testing.T) Options {
	return Options{
		NumPoints:   1000,
		Source:      rand.NewPCG(7, 7),
		Width:       640,
		Height:      480,
		FocalLength: 500,
		ImagePath:   writeTestPNG(t),
	}
}

func TestRun(t *testing.T) {
	sink := rec.NewMemorySink()
	stream := rec.NewRecordingStream("demo_test", rec.WithSink(sink))
	defer stream.Close()

	require.NoError(t, Run(context.Background(), stream, testOptions(t)))

	msgs := sink.Messages()
	var paths []string
	for _, m := range msgs {
		paths = append(paths, m.EntityPath)
	}
	assert.Equal(t, []string{
		"/world/points_from_vector",
		"/world/points_from_matrix",
		"/world/points_from_columns",
		"/world/camera",
		"/world/camera",
		"/image",
	}, paths)

	for _, m := range msgs[:3] {
		cell, err := archetypes.FindCell(m.Cells, components.NamePosition3D)
		require.NoError(t, err)
		assert.Equal(t, 1000, cell.NumInstances)
		assert.Len(t, cell.Payload, 12000)
	}

	pinhole, err := archetypes.FindCell(msgs[3].Cells, components.NamePinholeProjection)
	require.NoError(t, err)
	proj, err := archetypes.DecodeFloats(pinhole)
	require.NoError(t, err)
	assert.Equal(t, []float32{500, 0, 0, 0, 500, 0, 319.5, 239.5, 1}, proj)

	res, err := archetypes.FindCell(msgs[3].Cells, components.NameResolution)
	require.NoError(t, err)
	wh, err := archetypes.DecodeFloats(res)
	require.NoError(t, err)
	assert.Equal(t, []float32{640, 480}, wh)

	translation, err := archetypes.FindCell(msgs[4].Cells, components.NameTranslation3D)
	require.NoError(t, err)
	tv, err := archetypes.DecodeFloats(translation)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, -1, 0}, tv)

	shape, err := archetypes.FindCell(msgs[5].Cells, components.NameTensorShape)
	require.NoError(t, err)
	dims, err := archetypes.DecodeShape(shape)
	require.NoError(t, err)
	assert.Equal(t, []components.TensorDimension{
		{Size: 2, Name: "height"}, {Size: 3, Name: "width"}, {Size: 3, Name: "depth"},
	}, dims)

	data, err := archetypes.FindCell(msgs[5].Cells, components.NameTensorData)
	require.NoError(t, err)
	assert.Len(t, data.Payload, 2*3*3)
	assert.Equal(t, []byte{255, 0, 0}, data.Payload[:3])
}

func TestRunBorrowedImage(t *testing.T) {
	sink := rec.NewMemorySink()
	stream := rec.NewRecordingStream("demo_test", rec.WithSink(sink))
	defer stream.Close()

	opt := testOptions(t)
	opt.BorrowImage = true
	require.NoError(t, Run(context.Background(), stream, opt))

	msgs := sink.Messages()
	require.Len(t, msgs, 6)
	data, err := archetypes.FindCell(msgs[5].Cells, components.NameTensorData)
	require.NoError(t, err)
	assert.Len(t, data.Payload, 18)
}

func TestRunMissingImageLogsEverythingElse(t *testing.T) {
	sink := rec.NewMemorySink()
	stream := rec.NewRecordingStream("demo_test", rec.WithSink(sink))
	defer stream.Close()

	opt := testOptions(t)
	opt.ImagePath = filepath.Join(t.TempDir(), "nope.png")

	err := Run(context.Background(), stream, opt)
	var loadErr *ImageLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, opt.ImagePath, loadErr.Path)
	assert.Len(t, sink.Messages(), 5)
}

func TestRunCancelled(t *testing.T) {
	sink := rec.NewMemorySink()
	stream := rec.NewRecordingStream("demo_test", rec.WithSink(sink))
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, stream, testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Messages())
}

func TestOptionsFromConfig(t *testing.T) {
	seed := uint64(9)
	cfg := config.DefaultExampleConfig()
	cfg.Seed = &seed

	opt := OptionsFromConfig(cfg)
	assert.Equal(t, 1000, opt.NumPoints)
	assert.Equal(t, 640.0, opt.Width)
	assert.Equal(t, 500.0, opt.FocalLength)
	require.NotNil(t, opt.Source)

	a := GenerateRandomPoints(5, opt.Source)
	b := GenerateRandomPoints(5, OptionsFromConfig(cfg).Source)
	assert.Equal(t, a, b, "seeded config is deterministic")

	assert.Nil(t, OptionsFromConfig(&config.ExampleConfig{}).Source)
}
