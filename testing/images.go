// Package testing provides helpers for building FAT16 images in tests.
package testing

import (
	"io"
	"testing"
	"time"

	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
	"go.uber.org/zap/zaptest"
)

// DefaultTotalSectors gives a 4 MiB image, which with one sector per cluster is
// comfortably inside the FAT16 cluster range.
const DefaultTotalSectors = 8192

// FixedTime is the clock used by volumes mounted through this package.
var FixedTime = time.Date(2024, time.March, 9, 14, 25, 36, 0, time.Local)

// DefaultFormatOptions gives the layout used by [NewFormattedImage] when no
// options are passed: 512-byte sectors, 1 sector per cluster, 2 FATs and 512
// root entries.
func DefaultFormatOptions() fat16.FormatOptions {
	return fat16.FormatOptions{
		TotalSectors:      DefaultTotalSectors,
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		RootEntries:       512,
		Label:             "TESTVOL",
		VolumeID:          0x1234ABCD,
		Now:               FixedTime,
	}
}

// NewFormattedImage returns the bytes of a freshly formatted image. It is
// guaranteed to either return a valid image or fail the test and abort.
func NewFormattedImage(t *testing.T, opts fat16.FormatOptions) []byte {
	if opts.BytesPerSector == 0 {
		opts.BytesPerSector = 512
	}
	image := make([]byte, opts.TotalSectors*opts.BytesPerSector)

	_, err := fat16.Format(bytesextra.NewReadWriteSeeker(image), opts)
	require.NoError(t, err, "failed to format test image")
	return image
}

// StreamFromImage wraps an image in a stream. Writes go straight into `image`,
// so tests can inspect the raw bytes afterwards. The size of the stream is
// fixed to len(image).
func StreamFromImage(image []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(image)
}

// MountImage mounts `image` with a fixed clock and a logger that writes to the
// test log.
func MountImage(t *testing.T, image []byte, opts ...fat16.Option) *fat16.Volume {
	allOpts := []fat16.Option{
		fat16.WithClock(func() time.Time { return FixedTime }),
		fat16.WithLogger(zaptest.NewLogger(t).Sugar()),
	}
	allOpts = append(allOpts, opts...)

	volume, err := fat16.MountStream(StreamFromImage(image), allOpts...)
	require.NoError(t, err, "failed to mount test image")
	t.Cleanup(func() { volume.Close() })
	return volume
}

// MountBlankVolume formats a default image and mounts it. The raw image is
// returned too.
func MountBlankVolume(t *testing.T, opts ...fat16.Option) (*fat16.Volume, []byte) {
	image := NewFormattedImage(t, DefaultFormatOptions())
	return MountImage(t, image, opts...), image
}
