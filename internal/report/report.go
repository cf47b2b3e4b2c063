// Package report renders previews of recorded point clouds and images: a
// top-down PNG scatter (gonum/plot), an interactive HTML scatter
// (go-echarts) and a PNG of logged image tensors.
package report

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sensorlog/internal/components"
)

// viridis is the color ramp used for height.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Options controls preview rendering.
type Options struct {
	Title     string
	MaxPoints int
	// Size is the side of the square PNG.
	Size vg.Length
}

// DefaultOptions returns the default preview options.
func DefaultOptions() Options {
	return Options{
		Title:     "Point cloud",
		MaxPoints: 20000,
		Size:      6 * vg.Inch,
	}
}

// Downsample keeps every stride-th point so at most max points remain. It
// returns the kept points and the stride used.
func Downsample(points []components.Position3D, max int) ([]components.Position3D, int) {
	stride := 1
	if max > 0 && len(points) > max {
		stride = int(math.Ceil(float64(len(points)) / float64(max)))
	}
	if stride == 1 {
		return points, 1
	}
	out := make([]components.Position3D, 0, len(points)/stride+1)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	return out, stride
}

// extent returns the symmetric half-width covering all X/Y values, padded so
// edge points stay visible, and the Z range.
func extent(points []components.Position3D) (pad, minZ, maxZ float64) {
	maxAbs := 0.0
	minZ, maxZ = math.Inf(1), math.Inf(-1)
	for _, p := range points {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(float64(p.X)), math.Abs(float64(p.Y))))
		minZ = math.Min(minZ, float64(p.Z))
		maxZ = math.Max(maxZ, float64(p.Z))
	}
	pad = maxAbs * 1.05
	if pad == 0 {
		pad = 1
	}
	if len(points) == 0 {
		minZ, maxZ = 0, 1
	}
	if minZ == maxZ {
		maxZ = minZ + 1
	}
	return pad, minZ, maxZ
}

// WritePointsPNG writes a top-down (X/Y) scatter of points as PNG.
func WritePointsPNG(w io.Writer, points []components.Position3D, opt Options) error {
	kept, stride := Downsample(points, opt.MaxPoints)
	pad, _, _ := extent(kept)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%d points, stride %d)", opt.Title, len(kept), stride)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	if len(kept) > 0 {
		xys := make(plotter.XYs, len(kept))
		for i, pt := range kept {
			xys[i] = plotter.XY{X: float64(pt.X), Y: float64(pt.Y)}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("failed to create scatter: %w", err)
		}
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)
	}
	p.Add(plotter.NewGrid())

	wt, err := p.WriterTo(opt.Size, opt.Size, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// WritePointsHTML writes an interactive top-down scatter colored by Z.
func WritePointsHTML(w io.Writer, points []components.Position3D, opt Options) error {
	kept, stride := Downsample(points, opt.MaxPoints)
	pad, minZ, maxZ := extent(kept)

	data := make([]opts.ScatterData, 0, len(kept))
	for _, p := range kept {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Z}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: opt.Title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: opt.Title, Subtitle: fmt.Sprintf("points=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minZ),
			Max:        float32(maxZ),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// TensorImage converts an interleaved height x width x depth tensor to an
// image. Depth 1 is gray, 3 is RGB, 4 is RGBA.
func TensorImage(dims []components.TensorDimension, data []byte) (image.Image, error) {
	if len(dims) != 3 {
		return nil, fmt.Errorf("expected 3 dimensions, got %d", len(dims))
	}
	n, err := components.TensorElements(dims)
	if err != nil {
		return nil, err
	}
	h, w, d := int(dims[0].Size), int(dims[1].Size), int(dims[2].Size)
	if n != len(data) {
		return nil, fmt.Errorf("tensor %dx%dx%d does not match %d bytes", h, w, d, len(data))
	}

	switch d {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, data)
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = data[i], data[i+1], data[i+2], 0xff
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(img.Pix, data)
		return img, nil
	}
	return nil, fmt.Errorf("unsupported depth %d", d)
}

// WriteTensorPNG encodes a logged image tensor as PNG.
func WriteTensorPNG(w io.Writer, dims []components.TensorDimension, data []byte) error {
	img, err := TensorImage(dims, data)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
