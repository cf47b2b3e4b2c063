// Package demo builds the sample data of the example program (random point
// clouds, a posed pinhole camera and an image) and logs it through the
// adapters.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sensorlog/internal/adapters"
	"github.com/banshee-data/sensorlog/internal/archetypes"
	"github.com/banshee-data/sensorlog/internal/batch"
	"github.com/banshee-data/sensorlog/internal/components"
	"github.com/banshee-data/sensorlog/internal/config"
	"github.com/banshee-data/sensorlog/internal/imaging"
	"github.com/banshee-data/sensorlog/internal/linalg"
	"github.com/banshee-data/sensorlog/internal/monitoring"
)

// Entity paths logged by Run.
const (
	PathPointsFromVector  = "world/points_from_vector"
	PathPointsFromMatrix  = "world/points_from_matrix"
	PathPointsFromColumns = "world/points_from_columns"
	PathCamera            = "world/camera"
	PathImage             = "image"
)

// Logger is the part of a recording stream Run needs.
type Logger interface {
	Log(path string, a archetypes.AsComponents) error
}

// ImageLoadError is returned when the sample image cannot be read.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("could not read the image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// Options controls Run.
type Options struct {
	NumPoints   int
	Source      rand.Source // nil = non-deterministic
	Width       float64
	Height      float64
	FocalLength float64
	ImagePath   string
	BorrowImage bool
}

// OptionsFromConfig maps the example config onto Run options.
func OptionsFromConfig(cfg *config.ExampleConfig) Options {
	opt := Options{
		NumPoints:   cfg.GetNumPoints(),
		Width:       cfg.GetWidth(),
		Height:      cfg.GetHeight(),
		FocalLength: cfg.GetFocalLength(),
		ImagePath:   cfg.GetImagePath(),
		BorrowImage: cfg.GetBorrowImage(),
	}
	if seed, ok := cfg.GetSeed(); ok {
		opt.Source = rand.NewPCG(seed, seed)
	}
	return opt
}

func uniform(src rand.Source) distuv.Uniform {
	return distuv.Uniform{Min: -1, Max: 1, Src: src}
}

// GenerateRandomPoints returns n points with components uniform in [-1, 1].
func GenerateRandomPoints(n int, src rand.Source) []linalg.Vector3f {
	u := uniform(src)
	points := make([]linalg.Vector3f, n)
	for i := range points {
		points[i] = linalg.Vector3f{float32(u.Rand()), float32(u.Rand()), float32(u.Rand())}
	}
	return points
}

// RandomMatrixX3 returns an Nx3 matrix with entries uniform in [-1, 1].
func RandomMatrixX3(n int, src rand.Source) linalg.MatrixX3f {
	return linalg.NewMatrixX3f(n, randomFloats(3*n, src))
}

// RandomMatrix3X returns a 3xN matrix with entries uniform in [-1, 1].
func RandomMatrix3X(n int, src rand.Source) linalg.Matrix3Xf {
	return linalg.NewMatrix3Xf(n, randomFloats(3*n, src))
}

func randomFloats(n int, src rand.Source) []float32 {
	u := uniform(src)
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(u.Rand())
	}
	return data
}

// ProjectionMatrix returns the pinhole intrinsics for an image of the given
// size, with the principal point in the image center.
func ProjectionMatrix(width, height, focal float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		focal, 0, (width - 1) / 2,
		0, focal, (height - 1) / 2,
		0, 0, 1,
	})
}

// CameraPose returns the fixed camera translation and orientation, with the
// camera one unit behind the origin looking along +Y.
func CameraPose() (components.Vec3D, components.Mat3x3, error) {
	translation := components.Vec3D{0, -1, 0}
	orientation := mat.NewDense(3, 3, []float64{
		0, 1, 0,
		0, 0, 1,
		1, 0, 0,
	})
	m, err := linalg.ColMajor3x3(orientation)
	if err != nil {
		return components.Vec3D{}, components.Mat3x3{}, err
	}
	return translation, components.Mat3x3(m), nil
}

// LoadImage reads an image and converts it to RGB.
func LoadImage(path string) (imaging.Mat, error) {
	img, err := imaging.Read(path)
	if err != nil {
		return imaging.Mat{}, &ImageLoadError{Path: path, Err: err}
	}
	if err := imaging.CvtColorBGRToRGB(img); err != nil {
		return imaging.Mat{}, &ImageLoadError{Path: path, Err: err}
	}
	return img, nil
}

// Run logs the sample scene to l. The image is loaded last, so a missing
// image leaves the point clouds and camera already logged.
func Run(ctx context.Context, l Logger, opt Options) error {
	steps := []struct {
		name string
		fn   func(Logger, Options) error
	}{
		{"points from vector", logPointsFromVector},
		{"points from matrix", logPointsFromMatrix},
		{"points from columns", logPointsFromColumns},
		{"camera", logCamera},
		{"image", logImage},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(l, opt); err != nil {
			return fmt.Errorf("failed to log %s: %w", step.name, err)
		}
		monitoring.Logf("[Demo] Logged %s", step.name)
	}
	return nil
}

func logPointsFromVector(l Logger, opt Options) error {
	points := GenerateRandomPoints(opt.NumPoints, opt.Source)
	positions, err := adapters.VectorPositions{}.ViewInto(&points)
	if err != nil {
		return err
	}
	return l.Log(PathPointsFromVector, archetypes.NewPoints3D(positions))
}

func logPointsFromMatrix(l Logger, opt Options) error {
	m := RandomMatrixX3(opt.NumPoints, opt.Source)
	positions, err := adapters.MatrixX3Positions{}.ViewInto(&m)
	if err != nil {
		return err
	}
	return l.Log(PathPointsFromMatrix, archetypes.NewPoints3D(positions))
}

func logPointsFromColumns(l Logger, opt Options) error {
	m := RandomMatrix3X(opt.NumPoints, opt.Source)
	positions, err := adapters.Matrix3XPositions{}.ViewInto(&m)
	if err != nil {
		return err
	}
	return l.Log(PathPointsFromColumns, archetypes.NewPoints3D(positions))
}

func logCamera(l Logger, opt Options) error {
	projection, err := linalg.ColMajor3x3(ProjectionMatrix(opt.Width, opt.Height, opt.FocalLength))
	if err != nil {
		return err
	}
	pinhole := archetypes.NewPinhole(components.PinholeProjection(projection)).
		WithResolution(components.Resolution{Width: float32(opt.Width), Height: float32(opt.Height)})
	if err := l.Log(PathCamera, pinhole); err != nil {
		return err
	}

	translation, orientation, err := CameraPose()
	if err != nil {
		return err
	}
	return l.Log(PathCamera, archetypes.NewTransform3D(translation, orientation))
}

func logImage(l Logger, opt Options) error {
	img, err := LoadImage(opt.ImagePath)
	if err != nil {
		return err
	}
	shape, err := adapters.ImageShape{}.CopyFrom(img)
	if err != nil {
		return err
	}
	ownership := batch.Owned
	if opt.BorrowImage {
		ownership = batch.Borrowed
	}
	data, err := batch.Adapt[uint8, imaging.Mat](adapters.ImageBytes{}, &img, ownership)
	if err != nil {
		return err
	}
	return l.Log(PathImage, archetypes.NewImage(shape, data))
}
