// Package fat16 implements a manager for FAT16 volumes stored in flat disk
// images. Only the root directory is supported.
package fat16

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/fatimg/fatimg/errors"
)

// BootSectorSize is the number of bytes of the boot sector that carry the BIOS
// parameter block and the FAT12/16 extended fields.
const BootSectorSize = 62

// SignatureOffset is where the 0x55 0xAA boot signature lives in sector 0.
const SignatureOffset = 510

const extendedBootSignature = 0x29

// BootSector is the decoded BIOS parameter block of a FAT16 volume.
type BootSector struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
	DriveNumber       uint8
	Reserved1         uint8
	BootSignature     uint8
	VolumeID          uint32
	VolumeLabel       [11]byte
	FSType            [8]byte
}

// DecodeBootSector reads the boot sector fields out of `buf`, which must hold
// at least [BootSectorSize] bytes. No sanity checking is done here; see
// [BootSector.Validate].
func DecodeBootSector(buf []byte) (BootSector, error) {
	var bs BootSector
	if len(buf) < BootSectorSize {
		return bs, errors.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("boot sector needs %d bytes, got %d", BootSectorSize, len(buf)))
	}

	le := binary.LittleEndian
	copy(bs.JmpBoot[:], buf[0:3])
	copy(bs.OEMName[:], buf[3:11])
	bs.BytesPerSector = le.Uint16(buf[11:13])
	bs.SectorsPerCluster = buf[13]
	bs.ReservedSectors = le.Uint16(buf[14:16])
	bs.NumFATs = buf[16]
	bs.RootEntryCount = le.Uint16(buf[17:19])
	bs.TotalSectors16 = le.Uint16(buf[19:21])
	bs.Media = buf[21]
	bs.SectorsPerFAT = le.Uint16(buf[22:24])
	bs.SectorsPerTrack = le.Uint16(buf[24:26])
	bs.NumHeads = le.Uint16(buf[26:28])
	bs.HiddenSectors = le.Uint32(buf[28:32])
	bs.TotalSectors32 = le.Uint32(buf[32:36])
	bs.DriveNumber = buf[36]
	bs.Reserved1 = buf[37]
	bs.BootSignature = buf[38]
	bs.VolumeID = le.Uint32(buf[39:43])
	copy(bs.VolumeLabel[:], buf[43:54])
	copy(bs.FSType[:], buf[54:62])
	return bs, nil
}

// Encode writes the boot sector fields into the first [BootSectorSize] bytes of
// `buf`. Everything past that, including the signature, is left untouched.
func (bs *BootSector) Encode(buf []byte) error {
	if len(buf) < BootSectorSize {
		return errors.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("boot sector needs %d bytes, got %d", BootSectorSize, len(buf)))
	}

	le := binary.LittleEndian
	copy(buf[0:3], bs.JmpBoot[:])
	copy(buf[3:11], bs.OEMName[:])
	le.PutUint16(buf[11:13], bs.BytesPerSector)
	buf[13] = bs.SectorsPerCluster
	le.PutUint16(buf[14:16], bs.ReservedSectors)
	buf[16] = bs.NumFATs
	le.PutUint16(buf[17:19], bs.RootEntryCount)
	le.PutUint16(buf[19:21], bs.TotalSectors16)
	buf[21] = bs.Media
	le.PutUint16(buf[22:24], bs.SectorsPerFAT)
	le.PutUint16(buf[24:26], bs.SectorsPerTrack)
	le.PutUint16(buf[26:28], bs.NumHeads)
	le.PutUint32(buf[28:32], bs.HiddenSectors)
	le.PutUint32(buf[32:36], bs.TotalSectors32)
	buf[36] = bs.DriveNumber
	buf[37] = bs.Reserved1
	buf[38] = bs.BootSignature
	le.PutUint32(buf[39:43], bs.VolumeID)
	copy(buf[43:54], bs.VolumeLabel[:])
	copy(buf[54:62], bs.FSType[:])
	return nil
}

// TotalSectors gives the sector count of the volume. The 16-bit field wins if
// it's nonzero.
func (bs *BootSector) TotalSectors() uint {
	if bs.TotalSectors16 != 0 {
		return uint(bs.TotalSectors16)
	}
	return uint(bs.TotalSectors32)
}

// Label gives the volume label stored in the extended boot record, or an empty
// string if there isn't one.
func (bs *BootSector) Label() string {
	if bs.BootSignature != extendedBootSignature {
		return ""
	}
	label := strings.TrimRight(string(bs.VolumeLabel[:]), " \x00")
	if label == "NO NAME" {
		return ""
	}
	return label
}

// HasSignature reports whether `sector` ends with the 0x55 0xAA boot signature.
func HasSignature(sector []byte) bool {
	if len(sector) < SignatureOffset+2 {
		return false
	}
	return bytes.Equal(sector[SignatureOffset:SignatureOffset+2], []byte{0x55, 0xAA})
}

func invalidVolume(format string, args ...any) error {
	return errors.ErrInvalidVolume.WithMessage(fmt.Sprintf(format, args...))
}

// Validate checks that the boot sector describes a usable FAT16 volume.
func (bs *BootSector) Validate() error {
	switch bs.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return invalidVolume(
			"BytesPerSector must be 512, 1024, 2048, or 4096, got %d", bs.BytesPerSector)
	}

	switch bs.SectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return invalidVolume(
			"SectorsPerCluster must be a power of 2 in 1-128, got %d", bs.SectorsPerCluster)
	}

	bytesPerCluster := uint(bs.BytesPerSector) * uint(bs.SectorsPerCluster)
	if bytesPerCluster > 32768 {
		return invalidVolume("BytesPerCluster cannot exceed 32,768 but got %d", bytesPerCluster)
	}
	if bs.ReservedSectors == 0 {
		return invalidVolume("ReservedSectors must be at least 1")
	}
	if bs.NumFATs == 0 {
		return invalidVolume("NumFATs must be at least 1")
	}
	if bs.RootEntryCount == 0 {
		return invalidVolume("RootEntryCount is 0; this is not a FAT12/16 volume")
	}
	if bs.SectorsPerFAT == 0 {
		return invalidVolume("SectorsPerFAT16 is 0; this is not a FAT12/16 volume")
	}

	geometry := NewGeometry(*bs)
	if geometry.TotalSectors == 0 {
		return invalidVolume("total sector count is 0")
	}
	if geometry.TotalSectors <= uint(geometry.DataStart) {
		return invalidVolume(
			"volume has %d sectors but the data region starts at sector %d",
			geometry.TotalSectors,
			geometry.DataStart,
		)
	}

	version := DetermineFATVersion(geometry.TotalClusters)
	if version != 16 {
		return invalidVolume(
			"%d clusters makes this a FAT%d volume, not FAT16", geometry.TotalClusters, version)
	}

	return nil
}
