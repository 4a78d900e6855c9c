// Package compression packs disk images for storage and transfer.
//
// A freshly formatted FAT16 image is almost entirely zero bytes: a 128 MiB
// volume holds a few hundred bytes of boot sector, FAT and directory, and the
// rest is empty clusters. Packing run-length encodes the image first and then
// compresses the result with gzip or xz, which shrinks such an image to a few
// hundred bytes. Unpacking tells the two apart by their magic numbers.
//
// The run-length encoding is RLE8, as used by the BMP file format. A byte that
// occurs N >= 2 times in a row is written twice, followed by a count byte
// holding N-2. A count byte covers at most 255 extra repetitions, so a run of
// 300 bytes "X" becomes `XX 255 XX 41`. A byte occurring exactly twice costs
// three bytes, `XX 0`.
package compression
