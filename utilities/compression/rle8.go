package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/fatimg/fatimg/errors"
)

// maxRunLength is the longest run a single RLE8 group can describe: the byte
// twice plus 255 repetitions.
const maxRunLength = 257

// writeRun emits the RLE8 groups for `length` copies of `value`.
func writeRun(output *bufio.Writer, value byte, length int) {
	for length >= 2 {
		group := length
		if group > maxRunLength {
			group = maxRunLength
		}
		output.Write([]byte{value, value, byte(group - 2)})
		length -= group
	}
	if length == 1 {
		output.WriteByte(value)
	}
}

// CompressRLE8 encodes everything read from `input` and writes it to `output`.
// It returns the number of encoded bytes written.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	counter := &countingWriter{w: output}
	sink := bufio.NewWriter(counter)

	runByte := byte(0)
	runLength := 0
	for {
		current, err := source.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return counter.n, errors.ErrIOFailed.Wrap(err)
		}

		if runLength > 0 && current == runByte {
			runLength++
			continue
		}
		writeRun(sink, runByte, runLength)
		runByte = current
		runLength = 1
	}
	writeRun(sink, runByte, runLength)

	if err := sink.Flush(); err != nil {
		return counter.n, errors.ErrIOFailed.Wrap(err)
	}
	return counter.n, nil
}

// DecompressRLE8 decodes the RLE8 stream read from `input` into `output`. It
// returns the number of decoded bytes written.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	written := int64(0)
	previous := -1

	for {
		current, err := source.ReadByte()
		if err == io.EOF {
			return written, nil
		} else if err != nil {
			return written, errors.ErrIOFailed.Wrap(err)
		}

		chunk := []byte{current}
		if int(current) == previous {
			count, err := source.ReadByte()
			if err == io.EOF {
				return written, errors.ErrMalformedRecord.WithMessage(
					fmt.Sprintf("stream ends without a count after two %#02x bytes", current),
				).Wrap(io.ErrUnexpectedEOF)
			} else if err != nil {
				return written, errors.ErrIOFailed.Wrap(err)
			}

			// One copy of the pair was written on the previous byte.
			chunk = bytes.Repeat(chunk, int(count)+1)
			previous = -1
		} else {
			previous = int(current)
		}

		n, err := output.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, errors.ErrIOFailed.Wrap(err)
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
