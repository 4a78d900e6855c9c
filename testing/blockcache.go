package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
	"github.com/fatimg/fatimg/file_systems/common/blockcache"
	"github.com/stretchr/testify/require"
)

// CreateRandomImage returns `totalBlocks` blocks of random bytes.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	image := make([]byte, bytesPerBlock*totalBlocks)
	_, err := rand.Read(image)
	require.NoErrorf(t, err, "failed to fill %d blocks with random bytes", totalBlocks)
	return image
}

// MemoryBackend is a [blockcache.Backend] over a byte slice that records every
// block written to it. Out-of-range access and writes to a read-only backend
// fail the test.
type MemoryBackend struct {
	Data          []byte
	BytesPerBlock uint
	ReadOnly      bool
	// Written lists the blocks flushed to the backend, in order.
	Written []c.LogicalBlock

	t *testing.T
}

func (m *MemoryBackend) block(index c.LogicalBlock) ([]byte, error) {
	lo := uint(index) * m.BytesPerBlock
	if lo+m.BytesPerBlock > uint(len(m.Data)) {
		message := fmt.Sprintf("block %d is past the end of a %d-byte backend", index, len(m.Data))
		m.t.Error(message)
		return nil, errors.ErrIOFailed.WithMessage(message)
	}
	return m.Data[lo : lo+m.BytesPerBlock], nil
}

func (m *MemoryBackend) ReadBlock(index c.LogicalBlock, buffer []byte) error {
	source, err := m.block(index)
	if err != nil {
		return err
	}
	copy(buffer, source)
	return nil
}

func (m *MemoryBackend) WriteBlock(index c.LogicalBlock, buffer []byte) error {
	if m.ReadOnly {
		message := fmt.Sprintf("attempted to write block %d of a read-only backend", index)
		m.t.Error(message)
		return errors.New(errors.EROFS).WithMessage(message)
	}
	target, err := m.block(index)
	if err != nil {
		return err
	}
	copy(target, buffer)
	m.Written = append(m.Written, index)
	return nil
}

// NewMemoryCache creates a cache of `totalBlocks` blocks over a
// [MemoryBackend]. If `data` is nil the backend is filled with random bytes.
func NewMemoryCache(
	bytesPerBlock, totalBlocks uint, readOnly bool, data []byte, t *testing.T,
) (*blockcache.BlockCache, *MemoryBackend) {
	if data == nil {
		data = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}
	backend := &MemoryBackend{
		Data:          data,
		BytesPerBlock: bytesPerBlock,
		ReadOnly:      readOnly,
		t:             t,
	}
	return blockcache.New(backend, bytesPerBlock, totalBlocks), backend
}
