// Package blockcache mirrors a run of blocks at the start of an image in
// memory. The FAT16 driver keeps its whole metadata area here (boot sector,
// every FAT copy, and the root directory) and writes back only the sectors
// whose contents changed.
//
// Block indices are relative to the start of the cached region and begin at 0.
package blockcache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
)

// Backend is the storage a [BlockCache] sits on. The cache only ever passes
// block indices in [0, TotalBlocks) and buffers of exactly one block.
type Backend interface {
	ReadBlock(block c.LogicalBlock, buffer []byte) error
	WriteBlock(block c.LogicalBlock, buffer []byte) error
}

type streamBackend struct {
	stream        io.ReadWriteSeeker
	bytesPerBlock uint
}

func (b streamBackend) seek(block c.LogicalBlock) error {
	_, err := b.stream.Seek(int64(block)*int64(b.bytesPerBlock), io.SeekStart)
	return err
}

func (b streamBackend) ReadBlock(block c.LogicalBlock, buffer []byte) error {
	if err := b.seek(block); err != nil {
		return err
	}
	_, err := io.ReadFull(b.stream, buffer)
	return err
}

func (b streamBackend) WriteBlock(block c.LogicalBlock, buffer []byte) error {
	if err := b.seek(block); err != nil {
		return err
	}
	_, err := b.stream.Write(buffer)
	return err
}

type BlockCache struct {
	backend       Backend
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
	loaded        bitmap.Bitmap
	dirty         bitmap.Bitmap
	dirtyCount    uint
}

// New creates a cache of `totalBlocks` blocks over `backend`. Nothing is read
// until a block is first accessed.
func New(backend Backend, bytesPerBlock, totalBlocks uint) *BlockCache {
	return &BlockCache{
		backend:       backend,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		data:          make([]byte, bytesPerBlock*totalBlocks),
		loaded:        bitmap.NewSlice(int(totalBlocks)),
		dirty:         bitmap.NewSlice(int(totalBlocks)),
	}
}

// WrapStream caches the first `totalBlocks` blocks of `stream`.
func WrapStream(stream io.ReadWriteSeeker, bytesPerBlock, totalBlocks uint) *BlockCache {
	return New(streamBackend{stream: stream, bytesPerBlock: bytesPerBlock}, bytesPerBlock, totalBlocks)
}

func (cache *BlockCache) BytesPerBlock() uint { return cache.bytesPerBlock }
func (cache *BlockCache) TotalBlocks() uint   { return cache.totalBlocks }

// Size gives the size of the cached region in bytes.
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// DirtyCount gives the number of blocks waiting to be flushed.
func (cache *BlockCache) DirtyCount() uint {
	return cache.dirtyCount
}

// IsDirty reports whether a block has changes that haven't been flushed.
func (cache *BlockCache) IsDirty(block c.LogicalBlock) bool {
	if uint(block) >= cache.totalBlocks {
		return false
	}
	return cache.dirty.Get(int(block))
}

// span converts a byte length starting at `start` to a block count, failing if
// any part of it falls outside the cache. A zero-length span must still start
// inside the cache.
func (cache *BlockCache) span(start c.LogicalBlock, length uint) (uint, error) {
	count := c.CeilDiv(length, cache.bytesPerBlock)
	if uint(start) >= cache.totalBlocks || uint(start)+count > cache.totalBlocks {
		return 0, errors.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"%d bytes from block %d don't fit in a cache of %d blocks",
				length,
				start,
				cache.totalBlocks,
			),
		)
	}
	return count, nil
}

func (cache *BlockCache) raw(start c.LogicalBlock, count uint) []byte {
	lo := uint(start) * cache.bytesPerBlock
	return cache.data[lo : lo+count*cache.bytesPerBlock]
}

func (cache *BlockCache) load(start c.LogicalBlock, count uint) error {
	for i := uint(start); i < uint(start)+count; i++ {
		if cache.loaded.Get(int(i)) {
			continue
		}
		block := c.LogicalBlock(i)
		if err := cache.backend.ReadBlock(block, cache.raw(block, 1)); err != nil {
			return errors.ErrIOFailed.WithMessage(fmt.Sprintf("can't load block %d", i)).Wrap(err)
		}
		cache.loaded.Set(int(i), true)
	}
	return nil
}

// LoadAll reads every block not yet in the cache.
func (cache *BlockCache) LoadAll() error {
	return cache.load(0, cache.totalBlocks)
}

// Blocks returns the cache's own storage for `count` blocks beginning at
// `start`, loading them first. Callers must not modify it; use
// [BlockCache.WriteAt] so changes are tracked.
func (cache *BlockCache) Blocks(start c.LogicalBlock, count uint) ([]byte, error) {
	if _, err := cache.span(start, count*cache.bytesPerBlock); err != nil {
		return nil, err
	}
	if err := cache.load(start, count); err != nil {
		return nil, err
	}
	return cache.raw(start, count), nil
}

// ReadAt fills `buffer` with data beginning at block `start`. Nothing is
// copied if the read would run past the end of the cache.
func (cache *BlockCache) ReadAt(buffer []byte, start c.LogicalBlock) (int, error) {
	count, err := cache.span(start, uint(len(buffer)))
	if err != nil {
		return 0, err
	}
	if err = cache.load(start, count); err != nil {
		return 0, err
	}
	return copy(buffer, cache.raw(start, count)), nil
}

// WriteAt copies `buffer` into the cache beginning at block `start`. Only
// blocks whose contents change become dirty. The tail of a partially written
// block keeps its previous contents. Nothing is modified if the write would
// run past the end of the cache.
func (cache *BlockCache) WriteAt(buffer []byte, start c.LogicalBlock) (int, error) {
	count, err := cache.span(start, uint(len(buffer)))
	if err != nil {
		return 0, err
	}
	if err = cache.load(start, count); err != nil {
		return 0, err
	}

	target := cache.raw(start, count)
	for i := uint(0); i < count; i++ {
		lo := i * cache.bytesPerBlock
		hi := lo + cache.bytesPerBlock
		if hi > uint(len(buffer)) {
			hi = uint(len(buffer))
		}
		if bytes.Equal(target[lo:hi], buffer[lo:hi]) {
			continue
		}
		copy(target[lo:hi], buffer[lo:hi])

		block := int(start) + int(i)
		if !cache.dirty.Get(block) {
			cache.dirty.Set(block, true)
			cache.dirtyCount++
		}
	}
	return len(buffer), nil
}

// FlushRange writes the dirty blocks in [start, start + count) to the backend
// and returns how many it wrote. A failed write leaves that block dirty.
func (cache *BlockCache) FlushRange(start c.LogicalBlock, count uint) (int, error) {
	if count == 0 || cache.dirtyCount == 0 {
		return 0, nil
	}
	if _, err := cache.span(start, count*cache.bytesPerBlock); err != nil {
		return 0, err
	}

	written := 0
	for i := uint(start); i < uint(start)+count; i++ {
		if !cache.dirty.Get(int(i)) {
			continue
		}
		block := c.LogicalBlock(i)
		if err := cache.backend.WriteBlock(block, cache.raw(block, 1)); err != nil {
			return written, errors.ErrIOFailed.WithMessage(fmt.Sprintf("can't flush block %d", i)).Wrap(err)
		}
		cache.dirty.Set(int(i), false)
		cache.dirtyCount--
		written++
	}
	return written, nil
}

// Flush writes every dirty block to the backend.
func (cache *BlockCache) Flush() error {
	_, err := cache.FlushRange(0, cache.totalBlocks)
	return err
}
