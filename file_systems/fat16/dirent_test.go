package fat16_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawDirent(name string, attr byte, firstCluster uint16, size uint32) []byte {
	raw := make([]byte, fat16.DirentSize)
	copy(raw[0:11], name)
	raw[11] = attr
	binary.LittleEndian.PutUint16(raw[26:], firstCluster)
	binary.LittleEndian.PutUint32(raw[28:], size)
	return raw
}

func TestDecodeDirectoryEntry__FieldOffsets(t *testing.T) {
	raw := rawDirent("HELLO   TXT", 0x21, 0x1234, 0xDEADBEEF)
	raw[13] = 150
	binary.LittleEndian.PutUint16(raw[14:], 0x7A21)
	binary.LittleEndian.PutUint16(raw[16:], 0x5869)
	binary.LittleEndian.PutUint16(raw[18:], 0x586A)
	binary.LittleEndian.PutUint16(raw[22:], 0x7A22)
	binary.LittleEndian.PutUint16(raw[24:], 0x586B)

	entry, err := fat16.DecodeDirectoryEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, "HELLO.TXT", entry.DisplayName())
	assert.Equal(t, fatimg.AttrReadOnly|fatimg.AttrArchive, entry.Attributes)
	assert.EqualValues(t, 150, entry.CreateTenths)
	assert.EqualValues(t, 0x7A21, entry.CreateTime)
	assert.EqualValues(t, 0x5869, entry.CreateDate)
	assert.EqualValues(t, 0x586A, entry.AccessDate)
	assert.EqualValues(t, 0, entry.FirstClusterHigh)
	assert.EqualValues(t, 0x7A22, entry.ModifyTime)
	assert.EqualValues(t, 0x586B, entry.ModifyDate)
	assert.EqualValues(t, 0x1234, entry.FirstCluster)
	assert.EqualValues(t, 0xDEADBEEF, entry.FileSize)

	encoded := make([]byte, fat16.DirentSize)
	require.NoError(t, entry.Encode(encoded))
	assert.Equal(t, raw, encoded)
}

func TestDecodeDirectoryEntry__ShortBuffer(t *testing.T) {
	_, err := fat16.DecodeDirectoryEntry(make([]byte, 31))
	assert.ErrorIs(t, err, errors.ErrMalformedRecord)
}

func TestDirectoryEntry__Markers(t *testing.T) {
	end, _ := fat16.DecodeDirectoryEntry(make([]byte, 32))
	assert.True(t, end.IsEndOfDirectory())
	assert.True(t, end.IsFree())
	assert.False(t, end.IsFile())

	live, _ := fat16.DecodeDirectoryEntry(rawDirent("A          ", 0x20, 0, 0))
	assert.True(t, live.IsFile())
	live.MarkDeleted()
	assert.True(t, live.IsDeleted())
	assert.True(t, live.IsFree())

	label, _ := fat16.DecodeDirectoryEntry(rawDirent("MYVOLUME   ", 0x08, 0, 0))
	assert.True(t, label.IsVolumeLabel())
	assert.False(t, label.IsFile())

	longName, _ := fat16.DecodeDirectoryEntry(rawDirent("Ax\x00y\x00z\x00.\x00t\x00", 0x0F, 0, 0))
	assert.True(t, longName.IsVolumeLabel(), "long-name slots must be skipped like labels")
}

func TestDirectoryEntry__Timestamps(t *testing.T) {
	created := time.Date(2023, time.December, 25, 8, 30, 11, 0, time.Local)
	modified := created.Add(36 * time.Hour)

	var entry fat16.DirectoryEntry
	entry.SetCreated(created)
	entry.SetModified(modified)

	assert.True(t, created.Equal(entry.Created()))
	assert.True(t, modified.Truncate(2*time.Second).Equal(entry.Modified()))
	assert.Equal(t, "26/12/2023", fatimg.FormatDate(entry.Accessed()))

	attrs := entry.FileAttributes()
	assert.Equal(t, "25/12/2023", fatimg.FormatDate(attrs.Created))
	assert.Equal(t, "08:30:11", fatimg.FormatTime(attrs.Created))
	assert.Equal(t, entry.ModifyDate, attrs.ModifyDate)
}
