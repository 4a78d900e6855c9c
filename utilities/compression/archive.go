package compression

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/fatimg/fatimg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Codec is the general-purpose compressor applied after RLE8.
type Codec string

const (
	Gzip Codec = "gzip"
	XZ   Codec = "xz"
)

var gzipMagic = []byte{0x1f, 0x8b}
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// ParseCodec converts a codec name to a [Codec]. The empty string selects gzip.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", Gzip:
		return Gzip, nil
	case XZ:
		return XZ, nil
	}
	return "", errors.ErrInvalidArgument.WithMessage(
		fmt.Sprintf("unknown codec %q; expected gzip or xz", name))
}

// Extension gives the conventional file name suffix for packed images.
func (codec Codec) Extension() string {
	if codec == XZ {
		return ".xz"
	}
	return ".gz"
}

func (codec Codec) newWriter(output io.Writer) (io.WriteCloser, error) {
	var writer io.WriteCloser
	var err error

	switch codec {
	case Gzip:
		writer, err = gzip.NewWriterLevel(output, gzip.BestCompression)
	case XZ:
		writer, err = xz.NewWriter(output)
	default:
		return nil, errors.ErrNotSupported.WithMessage(fmt.Sprintf("codec %q", codec))
	}
	if err != nil {
		return nil, errors.ErrInvalidArgument.Wrap(err)
	}
	return writer, nil
}

// PackImage compresses a disk image with RLE8 and then `codec`. It returns the
// size of the packed output.
func PackImage(input io.Reader, output io.Writer, codec Codec) (int64, error) {
	counter := &countingWriter{w: output}

	compressor, err := codec.newWriter(counter)
	if err != nil {
		return 0, err
	}

	if _, err = CompressRLE8(input, compressor); err != nil {
		compressor.Close()
		return counter.n, err
	}
	if err = compressor.Close(); err != nil {
		return counter.n, errors.ErrIOFailed.Wrap(err)
	}
	return counter.n, nil
}

// UnpackImage reverses [PackImage]. The codec is detected from the packed
// data. It returns the size of the restored image.
func UnpackImage(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	header, err := source.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return 0, errors.ErrIOFailed.Wrap(err)
	}

	var decompressor io.Reader
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		gzReader, err := gzip.NewReader(source)
		if err != nil {
			return 0, errors.ErrMalformedRecord.WithMessage("bad gzip header").Wrap(err)
		}
		defer gzReader.Close()
		decompressor = gzReader
	case bytes.HasPrefix(header, xzMagic):
		xzReader, err := xz.NewReader(source)
		if err != nil {
			return 0, errors.ErrMalformedRecord.WithMessage("bad xz header").Wrap(err)
		}
		decompressor = xzReader
	default:
		return 0, errors.ErrMalformedRecord.WithMessage("not a packed image")
	}

	return DecompressRLE8(decompressor, output)
}
