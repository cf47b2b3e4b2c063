// Package testutil provides shared test helpers: an in-process gRPC
// listener and image fixtures.
package testutil

import (
	"context"
	"image"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// BufnetTarget is the dial target to use with Bufnet.DialOption.
const BufnetTarget = "passthrough:///bufnet"

// Bufnet is an in-memory listener for gRPC servers under test.
type Bufnet struct {
	*bufconn.Listener
}

// NewBufnet creates a listener with a buffer of size bytes.
func NewBufnet(size int) *Bufnet {
	return &Bufnet{Listener: bufconn.Listen(size)}
}

// DialOption routes client connections to the listener. Dial BufnetTarget.
func (b *Bufnet) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return b.DialContext(ctx)
	})
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// WritePNG encodes img as a PNG file called name in dir and returns its path.
func WritePNG(t testing.TB, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	AssertNoError(t, err)
	defer f.Close()
	AssertNoError(t, png.Encode(f, img))
	return path
}
