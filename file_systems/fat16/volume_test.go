package fat16_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	fattest "github.com/fatimg/fatimg/testing"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Offsets in the default test image.
const (
	fat0Offset    = 1 * 512
	fat1Offset    = 33 * 512
	fatBytes      = 32 * 512
	rootDirOffset = 65 * 512
	dataOffset    = 97 * 512
)

func createFile(t *testing.T, volume *fat16.Volume, name string, data []byte) {
	err := volume.Create(name, bytes.NewReader(data), int64(len(data)), fatimg.CreateOptions{})
	require.NoErrorf(t, err, "failed to create %q", name)
}

func randomBytes(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

func fatEntry(image []byte, copyOffset int, cluster int) uint16 {
	return binary.LittleEndian.Uint16(image[copyOffset+cluster*2:])
}

func assertFATCopiesMatch(t *testing.T, image []byte) {
	assert.True(
		t,
		bytes.Equal(image[fat0Offset:fat0Offset+fatBytes], image[fat1Offset:fat1Offset+fatBytes]),
		"FAT copies differ on disk",
	)
}

func TestMount__BlankVolume(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)

	files, err := volume.List()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "TESTVOL", volume.Label())

	stat, err := volume.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 8095, stat.TotalClusters)
	assert.EqualValues(t, 8095, stat.FreeClusters)
	assert.EqualValues(t, 511, stat.FreeRootEntries)
	assert.EqualValues(t, 0, stat.Files)
	assert.EqualValues(t, 0x1234ABCD, stat.SerialNumber)
	assert.Equal(t, "FATIMG", stat.OEMName)
	assert.EqualValues(t, 8095*512, stat.FreeBytes())
}

func TestMount__InvalidVolume(t *testing.T) {
	image := fattest.NewFormattedImage(t, fattest.DefaultFormatOptions())
	binary.LittleEndian.PutUint16(image[11:], 300)

	_, err := fat16.MountStream(fattest.StreamFromImage(image))
	assert.ErrorIs(t, err, errors.ErrInvalidVolume)
}

func TestMount__ImageUnreadable(t *testing.T) {
	_, err := fat16.MountStream(fattest.StreamFromImage(make([]byte, 100)))
	assert.ErrorIs(t, err, errors.ErrImageUnreadable, "image shorter than a sector")

	// A valid boot sector but the image ends before the root directory does.
	image := fattest.NewFormattedImage(t, fattest.DefaultFormatOptions())
	_, err = fat16.MountStream(fattest.StreamFromImage(image[:40*512]))
	assert.ErrorIs(t, err, errors.ErrImageUnreadable)

	_, err = fat16.MountFs(afero.NewMemMapFs(), "/does/not/exist.img")
	assert.ErrorIs(t, err, errors.ErrImageUnreadable)
}

func TestMountFs__PersistsAcrossMounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	image := fattest.NewFormattedImage(t, fattest.DefaultFormatOptions())
	require.NoError(t, afero.WriteFile(fs, "/disk.img", image, 0o644))

	volume, err := fat16.MountFs(fs, "/disk.img")
	require.NoError(t, err)
	createFile(t, volume, "notes.txt", []byte("remember the milk"))
	require.NoError(t, volume.Close())

	_, err = volume.List()
	assert.ErrorIs(t, err, errors.ErrVolumeClosed)

	volume, err = fat16.MountFs(fs, "/disk.img")
	require.NoError(t, err)
	defer volume.Close()

	data, err := volume.ReadFile("NOTES.TXT")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(data))
}

func TestList__SkipsLabelsDirectoriesAndDeleted(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "first.txt", []byte("1"))
	createFile(t, volume, "second.bin", []byte("22"))
	createFile(t, volume, "third", []byte("333"))
	require.NoError(t, volume.Delete("second.bin"))

	createFile(t, volume, "fourth.c", []byte("4444"))

	// Turn THIRD into a subdirectory directly on disk, then remount.
	thirdSlot := rootDirOffset + 3*32
	require.Equal(t, "THIRD      ", string(image[thirdSlot:thirdSlot+11]))
	image[thirdSlot+11] = byte(fatimg.AttrDirectory)

	volume = fattest.MountImage(t, image)
	files, err := volume.List()
	require.NoError(t, err)

	expected := []fatimg.FileSummary{
		{Name: "FIRST.TXT", Size: 1},
		{Name: "FOURTH.C", Size: 4},
	}
	if diff := cmp.Diff(expected, files); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate__ReadBack(t *testing.T) {
	testCases := []struct {
		name string
		size int
	}{
		{"EMPTY.TXT", 0},
		{"ONE.BIN", 1},
		{"EXACT.BIN", 512},
		{"OVER.BIN", 513},
		{"MULTI.BIN", 512*7 + 100},
	}

	volume, _ := fattest.MountBlankVolume(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := randomBytes(tc.size)
			createFile(t, volume, tc.name, data)

			readBack, err := volume.ReadFile(tc.name)
			require.NoError(t, err)
			assert.Equal(t, len(data), len(readBack))
			assert.True(t, bytes.Equal(data, readBack), "contents differ")

			attrs, err := volume.Attributes(strings.ToLower(tc.name))
			require.NoError(t, err)
			assert.EqualValues(t, tc.size, attrs.Size)
			assert.True(t, attrs.IsArchive())
			assert.False(t, attrs.IsReadOnly())
			assert.True(t, fattest.FixedTime.Equal(attrs.Created))
			assert.True(t, fattest.FixedTime.Equal(attrs.Modified))
			if tc.size == 0 {
				assert.EqualValues(t, 0, attrs.FirstCluster)
			} else {
				assert.GreaterOrEqual(t, attrs.FirstCluster, uint16(2))
			}
		})
	}
}

func TestCreate__OnDiskLayout(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	data := randomBytes(1100)
	createFile(t, volume, "x.bin", data)

	// Clusters 2, 3, 4 hold the data and are chained in the first FAT copy.
	assert.EqualValues(t, 3, fatEntry(image, fat0Offset, 2))
	assert.EqualValues(t, 4, fatEntry(image, fat0Offset, 3))
	assert.True(t, fat16.IsEndOfChain(fatEntry(image, fat0Offset, 4)))
	assert.EqualValues(t, 0, fatEntry(image, fat0Offset, 5))
	assertFATCopiesMatch(t, image)

	assert.Equal(t, data, image[dataOffset:dataOffset+1100])
	assert.Equal(t, make([]byte, 3*512-1100), image[dataOffset+1100:dataOffset+3*512],
		"last cluster should be zero-padded")

	// Slot 0 has the volume label, so the file lands in slot 1.
	entry, err := fat16.DecodeDirectoryEntry(image[rootDirOffset+32:])
	require.NoError(t, err)
	assert.Equal(t, "X.BIN", entry.DisplayName())
	assert.EqualValues(t, 2, entry.FirstCluster)
	assert.EqualValues(t, 1100, entry.FileSize)
	assert.Equal(t, fatimg.AttrArchive, entry.Attributes)
}

func TestCreate__Options(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	err := volume.Create(
		"sys.dat",
		strings.NewReader("abc"),
		3,
		fatimg.CreateOptions{ReadOnly: true, Hidden: true, System: true},
	)
	require.NoError(t, err)

	attrs, err := volume.Attributes("SYS.DAT")
	require.NoError(t, err)
	assert.True(t, attrs.IsReadOnly())
	assert.True(t, attrs.IsHidden())
	assert.True(t, attrs.IsSystem())
	assert.True(t, attrs.IsArchive())
	assert.Equal(t, []string{"read-only", "hidden", "system", "archive"}, attrs.FlagNames)
}

func TestCreate__Failures(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	createFile(t, volume, "taken.txt", []byte("x"))

	testCases := []struct {
		name     string
		fileName string
		size     int64
		expected error
	}{
		{"Conflict", "TAKEN.TXT", 1, errors.ErrNameConflict},
		{"ConflictOtherCase", "Taken.Txt", 1, errors.ErrNameConflict},
		{"BaseTooLong", "verylongname.txt", 1, errors.ErrInvalidName},
		{"ExtensionTooLong", "a.text", 1, errors.ErrInvalidName},
		{"TooLarge", "huge.bin", 1 << 32, errors.ErrFileTooLarge},
		{"DiskFull", "big.bin", 8096 * 512, errors.ErrDiskFull},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := volume.Create(
				tc.fileName, bytes.NewReader(nil), tc.size, fatimg.CreateOptions{})
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	stat, err := volume.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 8094, stat.FreeClusters, "failed creates leaked clusters")
	assert.EqualValues(t, 1, stat.Files)
}

func TestCreate__ShortSourceReleasesClusters(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	before := append([]byte(nil), image[:dataOffset]...)

	err := volume.Create("short.bin", strings.NewReader("only this"), 2000, fatimg.CreateOptions{})
	assert.ErrorIs(t, err, errors.ErrIOFailed)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = volume.Attributes("SHORT.BIN")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	stat, err := volume.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 8095, stat.FreeClusters)
	assert.Equal(t, before, image[:dataOffset], "metadata region changed")
}

func TestCreate__DirectoryFull(t *testing.T) {
	opts := fattest.DefaultFormatOptions()
	opts.RootEntries = 16
	opts.Label = ""
	volume := fattest.MountImage(t, fattest.NewFormattedImage(t, opts))

	for i := 0; i < 16; i++ {
		createFile(t, volume, strings.Repeat(string(rune('A'+i)), 3), nil)
	}
	err := volume.Create("ONEMORE", bytes.NewReader(nil), 0, fatimg.CreateOptions{})
	assert.ErrorIs(t, err, errors.ErrDirectoryFull)

	// Deleting a file frees its slot for reuse.
	require.NoError(t, volume.Delete("CCC"))
	createFile(t, volume, "ONEMORE", nil)
	files, err := volume.List()
	require.NoError(t, err)
	assert.Equal(t, "ONEMORE", files[2].Name)
}

func TestCreateFromHost(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	fs := afero.NewMemMapFs()

	payload := randomBytes(3000)
	require.NoError(t, afero.WriteFile(fs, "/host/data.bin", payload, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/host/locked.txt", []byte("hands off"), 0o444))
	require.NoError(t, fs.Chmod("/host/locked.txt", 0o444))

	require.NoError(t, volume.CreateFromHost(fs, "/host/data.bin", "DATA.BIN"))
	require.NoError(t, volume.CreateFromHost(fs, "/host/locked.txt", "LOCKED.TXT"))

	data, err := volume.ReadFile("DATA.BIN")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	attrs, err := volume.Attributes("DATA.BIN")
	require.NoError(t, err)
	assert.False(t, attrs.IsReadOnly())

	attrs, err = volume.Attributes("LOCKED.TXT")
	require.NoError(t, err)
	assert.True(t, attrs.IsReadOnly())

	err = volume.CreateFromHost(fs, "/host/missing.txt", "MISSING.TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)

	require.NoError(t, fs.MkdirAll("/host/subdir", 0o755))
	err = volume.CreateFromHost(fs, "/host/subdir", "SUBDIR")
	assert.ErrorIs(t, err, errors.ErrIsADirectory)
}

func TestReadContent__Streams(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	data := randomBytes(512*3 + 17)
	createFile(t, volume, "stream.bin", data)

	reader, err := volume.ReadContent("STREAM.BIN")
	require.NoError(t, err)

	// Read in awkward chunk sizes to cross cluster boundaries mid-buffer.
	var out bytes.Buffer
	chunk := make([]byte, 333)
	for {
		n, err := reader.Read(chunk)
		out.Write(chunk[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, data, out.Bytes())
}

func TestReadContent__NotFound(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	_, err := volume.ReadContent("NOPE.TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	_, err = volume.Attributes("NOPE.TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	_, err = volume.ReadContent("TESTVOL")
	assert.ErrorIs(t, err, errors.ErrFileNotFound, "volume label isn't a file")
}

func TestReadContent__StaleAfterMutation(t *testing.T) {
	volume, _ := fattest.MountBlankVolume(t)
	createFile(t, volume, "a.bin", randomBytes(2048))

	reader, err := volume.ReadContent("A.BIN")
	require.NoError(t, err)
	first := make([]byte, 512)
	_, err = io.ReadFull(reader, first)
	require.NoError(t, err)

	createFile(t, volume, "b.bin", []byte("b"))
	_, err = io.ReadFull(reader, first)
	assert.ErrorIs(t, err, errors.ErrStaleHandle)
}

func TestReadContent__CorruptChain(t *testing.T) {
	testCases := []struct {
		name string
		// link is what cluster 3's entry is overwritten with.
		link uint16
	}{
		{"LinkPastTable", 0xF000},
		{"EndsEarly", fat16.EndOfChain},
		{"Bad", fat16.BadCluster},
		{"Free", fat16.FreeCluster},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			volume, image := fattest.MountBlankVolume(t)
			createFile(t, volume, "chain.bin", randomBytes(512*4))

			binary.LittleEndian.PutUint16(image[fat0Offset+3*2:], tc.link)
			volume = fattest.MountImage(t, image)

			_, err := volume.ReadFile("CHAIN.BIN")
			assert.ErrorIs(t, err, errors.ErrCorruptChain)
		})
	}
}

func TestRename(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "old.txt", []byte("content"))
	fatBefore := append([]byte(nil), image[fat0Offset:rootDirOffset]...)

	require.NoError(t, volume.Rename("OLD.TXT", "new.md"))

	_, err := volume.Attributes("OLD.TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	data, err := volume.ReadFile("NEW.MD")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, fatBefore, image[fat0Offset:rootDirOffset], "rename must not touch the FAT")

	entry, err := fat16.DecodeDirectoryEntry(image[rootDirOffset+32:])
	require.NoError(t, err)
	assert.Equal(t, "NEW.MD", entry.DisplayName())

	// Changing only the case re-encodes to the same name and is allowed.
	assert.NoError(t, volume.Rename("new.md", "NEW.md"))
}

func TestRename__Failures(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "one.txt", []byte("1"))
	createFile(t, volume, "two.txt", []byte("2"))
	dirBefore := append([]byte(nil), image[rootDirOffset:dataOffset]...)

	assert.ErrorIs(t, volume.Rename("NONE.TXT", "X.TXT"), errors.ErrFileNotFound)
	assert.ErrorIs(t, volume.Rename("ONE.TXT", "two.txt"), errors.ErrNameConflict)
	assert.ErrorIs(t, volume.Rename("ONE.TXT", "toolongname.txt"), errors.ErrInvalidName)
	assert.ErrorIs(t, volume.Rename("ONE.TXT", "bad?.txt"), errors.ErrInvalidName)

	assert.Equal(t, dirBefore, image[rootDirOffset:dataOffset], "directory changed on disk")
	files, err := volume.List()
	require.NoError(t, err)
	assert.Equal(t, []fatimg.FileSummary{{Name: "ONE.TXT", Size: 1}, {Name: "TWO.TXT", Size: 1}}, files)
}

func TestDelete(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "a.txt", randomBytes(1500))
	createFile(t, volume, "b.txt", randomBytes(10))

	require.NoError(t, volume.Delete("a.txt"))

	for cluster := 2; cluster <= 4; cluster++ {
		assert.EqualValuesf(t, 0, fatEntry(image, fat0Offset, cluster), "cluster %d not freed", cluster)
	}
	assert.True(t, fat16.IsEndOfChain(fatEntry(image, fat0Offset, 5)), "B.TXT's cluster was freed")
	assertFATCopiesMatch(t, image)
	assert.EqualValues(t, 0xE5, image[rootDirOffset+32])

	_, err := volume.Attributes("A.TXT")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	assert.ErrorIs(t, volume.Delete("A.TXT"), errors.ErrFileNotFound)

	// The next file reuses both the slot and the lowest free clusters.
	createFile(t, volume, "c.txt", randomBytes(600))
	entry, err := fat16.DecodeDirectoryEntry(image[rootDirOffset+32:])
	require.NoError(t, err)
	assert.Equal(t, "C.TXT", entry.DisplayName())
	assert.EqualValues(t, 2, entry.FirstCluster)
	assert.EqualValues(t, 3, fatEntry(image, fat0Offset, 2))
}

func TestDelete__CorruptChainStillDeletes(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "bad.bin", randomBytes(512*3))
	binary.LittleEndian.PutUint16(image[fat0Offset+3*2:], 0x9999)
	binary.LittleEndian.PutUint16(image[fat1Offset+3*2:], 0x9999)
	volume = fattest.MountImage(t, image)

	require.NoError(t, volume.Delete("BAD.BIN"))
	assert.EqualValues(t, 0, fatEntry(image, fat0Offset, 2))
	assert.EqualValues(t, 0, fatEntry(image, fat0Offset, 3))
	// Cluster 4 was only reachable through the broken link.
	assert.True(t, fat16.IsEndOfChain(fatEntry(image, fat0Offset, 4)))

	_, err := volume.Attributes("BAD.BIN")
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}

func TestDelete__Directory(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	createFile(t, volume, "subdir", nil)
	image[rootDirOffset+32+11] = byte(fatimg.AttrDirectory)
	volume = fattest.MountImage(t, image)

	assert.ErrorIs(t, volume.Delete("SUBDIR"), errors.ErrIsADirectory)
	_, err := volume.ReadContent("SUBDIR")
	assert.ErrorIs(t, err, errors.ErrIsADirectory)
}

func TestMutations__FATCopiesStayIdentical(t *testing.T) {
	volume, image := fattest.MountBlankVolume(t)
	for i := 0; i < 10; i++ {
		name := string(rune('A'+i)) + ".DAT"
		createFile(t, volume, name, randomBytes(100*(i+1)))
		assertFATCopiesMatch(t, image)
	}
	for i := 0; i < 10; i += 3 {
		require.NoError(t, volume.Delete(string(rune('A'+i))+".DAT"))
		assertFATCopiesMatch(t, image)
	}
	require.NoError(t, volume.Rename("B.DAT", "BEE.DAT"))
	assertFATCopiesMatch(t, image)

	report, err := volume.Check()
	require.NoError(t, err)
	assert.True(t, report.Clean())
}
