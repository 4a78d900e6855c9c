package fat16

import (
	"fmt"
	"io"

	"github.com/fatimg/fatimg/errors"
)

// ContentReader reads a file's data one cluster at a time. It holds no lock
// between calls; if the volume is modified after the reader was opened, the
// next read that needs a new cluster fails with [errors.ErrStaleHandle].
type ContentReader struct {
	volume     *Volume
	name       string
	generation uint64
	chain      *ChainIterator
	remaining  int64
	buffered   []byte
	pos        int
	err        error
}

// Len gives the number of bytes left to read.
func (r *ContentReader) Len() int64 {
	return r.remaining + int64(len(r.buffered)-r.pos)
}

// Read implements [io.Reader].
func (r *ContentReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && r.err == nil {
		if r.pos >= len(r.buffered) {
			if r.remaining == 0 {
				break
			}
			r.err = r.fill()
			continue
		}
		copied := copy(p[n:], r.buffered[r.pos:])
		r.pos += copied
		n += copied
	}

	if n > 0 {
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return 0, io.EOF
}

// fill loads the next cluster of the file into the buffer.
func (r *ContentReader) fill() error {
	v := r.volume
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkOpen(); err != nil {
		return err
	}
	if v.generation != r.generation {
		return errors.ErrStaleHandle.WithMessage(r.name)
	}

	if !r.chain.Next() {
		if err := r.chain.Err(); err != nil {
			return err
		}
		return errors.ErrCorruptChain.WithMessage(
			fmt.Sprintf(
				"%s: chain ends after %d clusters with %d bytes still unread",
				r.name,
				r.chain.Steps(),
				r.remaining,
			),
		)
	}

	if r.buffered == nil || cap(r.buffered) < int(v.geometry.BytesPerCluster) {
		r.buffered = make([]byte, v.geometry.BytesPerCluster)
	}
	cluster := r.buffered[:v.geometry.BytesPerCluster]
	if err := v.image.ReadCluster(r.chain.Cluster(), cluster); err != nil {
		return err
	}

	take := int64(len(cluster))
	if r.remaining < take {
		take = r.remaining
	}
	r.buffered = cluster[:take]
	r.pos = 0
	r.remaining -= take
	return nil
}
