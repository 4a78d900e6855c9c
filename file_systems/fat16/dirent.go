package fat16

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
)

// DirentSize is the size of a single directory entry on disk.
const DirentSize = 32

// Markers stored in the first byte of a directory entry's name.
const (
	markerEndOfDirectory = 0x00
	markerDeleted        = 0xE5
	// markerEscapedE5 means the name really starts with 0xE5.
	markerEscapedE5 = 0x05
)

// DirectoryEntry is one 32-byte record of the root directory.
type DirectoryEntry struct {
	Name             [8]byte
	Ext              [3]byte
	Attributes       fatimg.AttrFlags
	NTReserved       uint8
	CreateTenths     uint8
	CreateTime       uint16
	CreateDate       uint16
	AccessDate       uint16
	FirstClusterHigh uint16
	ModifyTime       uint16
	ModifyDate       uint16
	FirstCluster     uint16
	FileSize         uint32
}

// DecodeDirectoryEntry reads a directory entry from the first [DirentSize]
// bytes of `buf`.
func DecodeDirectoryEntry(buf []byte) (DirectoryEntry, error) {
	var e DirectoryEntry
	if len(buf) < DirentSize {
		return e, errors.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("directory entry needs %d bytes, got %d", DirentSize, len(buf)))
	}

	le := binary.LittleEndian
	copy(e.Name[:], buf[0:8])
	copy(e.Ext[:], buf[8:11])
	e.Attributes = fatimg.AttrFlags(buf[11])
	e.NTReserved = buf[12]
	e.CreateTenths = buf[13]
	e.CreateTime = le.Uint16(buf[14:16])
	e.CreateDate = le.Uint16(buf[16:18])
	e.AccessDate = le.Uint16(buf[18:20])
	e.FirstClusterHigh = le.Uint16(buf[20:22])
	e.ModifyTime = le.Uint16(buf[22:24])
	e.ModifyDate = le.Uint16(buf[24:26])
	e.FirstCluster = le.Uint16(buf[26:28])
	e.FileSize = le.Uint32(buf[28:32])
	return e, nil
}

// Encode writes the entry into the first [DirentSize] bytes of `buf`.
func (e *DirectoryEntry) Encode(buf []byte) error {
	if len(buf) < DirentSize {
		return errors.ErrMalformedRecord.WithMessage(
			fmt.Sprintf("directory entry needs %d bytes, got %d", DirentSize, len(buf)))
	}

	le := binary.LittleEndian
	copy(buf[0:8], e.Name[:])
	copy(buf[8:11], e.Ext[:])
	buf[11] = byte(e.Attributes)
	buf[12] = e.NTReserved
	buf[13] = e.CreateTenths
	le.PutUint16(buf[14:16], e.CreateTime)
	le.PutUint16(buf[16:18], e.CreateDate)
	le.PutUint16(buf[18:20], e.AccessDate)
	le.PutUint16(buf[20:22], e.FirstClusterHigh)
	le.PutUint16(buf[22:24], e.ModifyTime)
	le.PutUint16(buf[24:26], e.ModifyDate)
	le.PutUint16(buf[26:28], e.FirstCluster)
	le.PutUint32(buf[28:32], e.FileSize)
	return nil
}

// IsEndOfDirectory is true for an unused slot. No live entries follow it.
func (e *DirectoryEntry) IsEndOfDirectory() bool {
	return e.Name[0] == markerEndOfDirectory
}

func (e *DirectoryEntry) IsDeleted() bool {
	return e.Name[0] == markerDeleted
}

// IsFree is true if the slot can be reused for a new file.
func (e *DirectoryEntry) IsFree() bool {
	return e.IsEndOfDirectory() || e.IsDeleted()
}

// IsVolumeLabel is true for the volume-id entry and for long-name slots, both
// of which are never treated as files.
func (e *DirectoryEntry) IsVolumeLabel() bool {
	return e.Attributes&fatimg.AttrVolumeID != 0
}

func (e *DirectoryEntry) IsDir() bool {
	return e.Attributes.Has(fatimg.AttrDirectory)
}

// IsFile is true for a live entry that names a file (or subdirectory).
func (e *DirectoryEntry) IsFile() bool {
	return !e.IsFree() && !e.IsVolumeLabel()
}

// DisplayName gives the decoded "NAME.EXT" form of the entry's name.
func (e *DirectoryEntry) DisplayName() string {
	return DecodeName(e.Name, e.Ext)
}

// StartCluster gives the first cluster of the file's data, or 0 if it has none.
func (e *DirectoryEntry) StartCluster() c.ClusterID {
	return c.ClusterID(e.FirstCluster)
}

// MarkDeleted soft-deletes the entry so its slot can be reused.
func (e *DirectoryEntry) MarkDeleted() {
	e.Name[0] = markerDeleted
}

// SetCreated stamps the creation, modification and access fields with `t`.
func (e *DirectoryEntry) SetCreated(t time.Time) {
	e.CreateDate = EncodeDate(t)
	e.CreateTime = EncodeTime(t)
	e.CreateTenths = EncodeTenths(t)
	e.SetModified(t)
}

// SetModified stamps the modification and access fields with `t`.
func (e *DirectoryEntry) SetModified(t time.Time) {
	e.ModifyDate = EncodeDate(t)
	e.ModifyTime = EncodeTime(t)
	e.AccessDate = e.ModifyDate
}

func (e *DirectoryEntry) Created() time.Time {
	return TimestampFromParts(e.CreateDate, e.CreateTime, e.CreateTenths)
}

func (e *DirectoryEntry) Modified() time.Time {
	return TimestampFromParts(e.ModifyDate, e.ModifyTime, 0)
}

func (e *DirectoryEntry) Accessed() time.Time {
	return TimestampFromParts(e.AccessDate, 0, 0)
}

// FileAttributes converts the entry into its public metadata form.
func (e *DirectoryEntry) FileAttributes() fatimg.FileAttributes {
	return fatimg.FileAttributes{
		Name:         e.DisplayName(),
		Size:         e.FileSize,
		FirstCluster: e.FirstCluster,
		Flags:        e.Attributes,
		FlagNames:    e.Attributes.Names(),
		Created:      e.Created(),
		Modified:     e.Modified(),
		Accessed:     e.Accessed(),
		CreateDate:   e.CreateDate,
		CreateTime:   e.CreateTime,
		CreateTenths: e.CreateTenths,
		ModifyDate:   e.ModifyDate,
		ModifyTime:   e.ModifyTime,
		AccessDate:   e.AccessDate,
	}
}
