package fat16

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
	"github.com/fatimg/fatimg/file_systems/common/blockcache"
	"github.com/fatimg/fatimg/utilities/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Volume is a mounted FAT16 image. The boot sector, FAT and root directory are
// mirrored in memory; every mutation writes data clusters first, then every
// FAT copy, then the root directory, before it returns.
//
// All methods are safe to call from multiple goroutines, but only one Volume
// may have a given image open at a time.
type Volume struct {
	mu sync.Mutex

	stream io.ReadWriteSeeker
	closer io.Closer
	image  *imageIO
	// meta caches sectors [0, DataStart): the reserved area, every FAT copy
	// and the root directory.
	meta *blockcache.BlockCache

	boot     BootSector
	geometry Geometry
	fat      *Table
	dir      *Directory

	// generation changes on every successful mutation. Readers compare it to
	// detect that the chain they're walking may no longer be valid.
	generation uint64
	closed     bool

	now func() time.Time
	log *zap.SugaredLogger
}

var _ fatimg.Manager = (*Volume)(nil)

// Option configures a Volume at mount time.
type Option func(*Volume)

// WithClock sets the time source used for directory entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Volume) {
		v.now = now
	}
}

// WithLogger sets the logger used by the volume instead of the process logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(v *Volume) {
		v.log = log
	}
}

// Mount opens the image at `path` on the host file system for reading and
// writing.
func Mount(path string, opts ...Option) (*Volume, error) {
	return MountFs(afero.NewOsFs(), path, opts...)
}

// MountFs opens the image at `path` inside `fs`. The file is closed by
// [Volume.Close].
func MountFs(fs afero.Fs, path string, opts ...Option) (*Volume, error) {
	file, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.ErrImageUnreadable.Wrap(err)
	}

	volume, err := MountStream(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	volume.closer = file
	return volume, nil
}

// MountStream mounts an image held in any seekable stream. The caller keeps
// ownership of the stream.
func MountStream(stream io.ReadWriteSeeker, opts ...Option) (*Volume, error) {
	volume := &Volume{
		stream: stream,
		now:    time.Now,
		log:    logger.Logger(),
	}
	for _, opt := range opts {
		opt(volume)
	}

	err := volume.load()
	if err != nil {
		return nil, err
	}
	return volume, nil
}

func (v *Volume) load() error {
	sector := make([]byte, 512)
	if _, err := v.stream.Seek(0, io.SeekStart); err != nil {
		return errors.ErrImageUnreadable.Wrap(err)
	}
	if _, err := io.ReadFull(v.stream, sector); err != nil {
		return errors.ErrImageUnreadable.WithMessage("can't read boot sector").Wrap(err)
	}

	boot, err := DecodeBootSector(sector)
	if err != nil {
		return err
	}
	if err = boot.Validate(); err != nil {
		return err
	}
	if !HasSignature(sector) {
		v.log.Warnf("boot sector has no 0x55AA signature; mounting anyway")
	}

	v.boot = boot
	v.geometry = NewGeometry(boot)
	v.image = &imageIO{stream: v.stream, geometry: v.geometry}

	v.meta = blockcache.WrapStream(
		v.stream, v.geometry.BytesPerSector, uint(v.geometry.DataStart))
	if err = v.meta.LoadAll(); err != nil {
		return errors.ErrImageUnreadable.WithMessage("can't read metadata region").Wrap(err)
	}

	copies, err := v.readFATCopies()
	if err != nil {
		return err
	}
	for i := 1; i < len(copies); i++ {
		if !bytes.Equal(copies[0], copies[i]) {
			v.log.Warnf("FAT copy %d differs from FAT copy 0; using copy 0", i)
		}
	}
	v.fat = NewTableFromBytes(copies[0], v.geometry.TotalClusters)

	rawDir, err := v.meta.Blocks(
		c.LogicalBlock(v.geometry.RootDirStart), v.geometry.RootDirSectors)
	if err != nil {
		return errors.ErrImageUnreadable.Wrap(err)
	}
	v.dir, err = NewDirectoryFromBytes(rawDir, v.geometry.RootEntryCount)
	if err != nil {
		return err
	}

	end, err := v.stream.Seek(0, io.SeekEnd)
	if err == nil && end < v.geometry.ImageSize() {
		v.log.Warnf(
			"image is %d bytes but the volume claims %d; reads near the end may fail",
			end,
			v.geometry.ImageSize(),
		)
	}

	v.log.Debugf(
		"mounted FAT16 volume: %d clusters of %d bytes, %d free, %d root entries",
		v.geometry.TotalClusters,
		v.geometry.BytesPerCluster,
		v.fat.FreeCount(),
		v.geometry.RootEntryCount,
	)
	return nil
}

// readFATCopies returns every FAT copy as held in the metadata cache. The
// slices alias the cache and must not be modified.
func (v *Volume) readFATCopies() ([][]byte, error) {
	copies := make([][]byte, v.geometry.NumFATs)
	for i := range copies {
		raw, err := v.meta.Blocks(
			c.LogicalBlock(v.geometry.FATCopyStart(uint(i))), v.geometry.SectorsPerFAT)
		if err != nil {
			return nil, errors.ErrImageUnreadable.Wrap(err)
		}
		copies[i] = raw
	}
	return copies, nil
}

// stageFAT copies the in-memory FAT into every FAT copy in the metadata cache
// without writing anything to the image.
func (v *Volume) stageFAT() error {
	raw := v.fat.Bytes()
	for i := uint(0); i < v.geometry.NumFATs; i++ {
		_, err := v.meta.WriteAt(raw, c.LogicalBlock(v.geometry.FATCopyStart(i)))
		if err != nil {
			return err
		}
	}
	return nil
}

// flushFAT writes the in-memory FAT to every FAT copy in the image.
func (v *Volume) flushFAT() error {
	if err := v.stageFAT(); err != nil {
		return err
	}
	written, err := v.meta.FlushRange(
		c.LogicalBlock(v.geometry.FATStart), v.geometry.NumFATs*v.geometry.SectorsPerFAT)
	v.log.Debugf("flushed %d FAT sectors", written)
	return err
}

func (v *Volume) stageDirectory() error {
	_, err := v.meta.WriteAt(v.dir.Bytes(), c.LogicalBlock(v.geometry.RootDirStart))
	return err
}

// flushDirectory writes the in-memory root directory to the image.
func (v *Volume) flushDirectory() error {
	if err := v.stageDirectory(); err != nil {
		return err
	}
	written, err := v.meta.FlushRange(
		c.LogicalBlock(v.geometry.RootDirStart), v.geometry.RootDirSectors)
	v.log.Debugf("flushed %d root directory sectors", written)
	return err
}

// restoreFAT replaces the in-memory FAT with `snapshot` after a failed
// mutation. If the failed FAT was already flushed, the snapshot is flushed too.
func (v *Volume) restoreFAT(snapshot *Table, flushed bool) {
	v.fat = snapshot
	var err error
	if flushed {
		err = v.flushFAT()
	} else {
		err = v.stageFAT()
	}
	if err != nil {
		v.log.Errorf("failed to restore FAT after an aborted operation: %v", err)
	}
}

func (v *Volume) checkOpen() error {
	if v.closed {
		return errors.ErrVolumeClosed
	}
	return nil
}

func (v *Volume) findFile(name string) (int, *DirectoryEntry, error) {
	slot, entry, ok := v.dir.FindByName(name)
	if !ok {
		return -1, nil, errors.ErrFileNotFound.WithMessage(name)
	}
	return slot, entry, nil
}

// BootSector returns a copy of the decoded boot sector.
func (v *Volume) BootSector() BootSector {
	return v.boot
}

// Geometry returns the layout of the volume.
func (v *Volume) Geometry() Geometry {
	return v.geometry
}

// Label gives the volume label, preferring the root directory's volume-id
// entry over the boot sector's copy.
func (v *Volume) Label() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.label()
}

func (v *Volume) label() string {
	if label, ok := v.dir.VolumeLabel(); ok {
		return label
	}
	return v.boot.Label()
}

// List returns the files in the root directory in slot order. Volume labels
// and subdirectories are left out.
func (v *Volume) List() ([]fatimg.FileSummary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return nil, err
	}

	files := []fatimg.FileSummary{}
	v.dir.Each(func(_ int, entry *DirectoryEntry) bool {
		if entry.IsVolumeLabel() || entry.IsDir() {
			return true
		}
		files = append(files, fatimg.FileSummary{
			Name: entry.DisplayName(),
			Size: entry.FileSize,
		})
		return true
	})
	return files, nil
}

// ReadContent returns a reader over the named file's data. Data is read from
// the image one cluster at a time as the reader is consumed.
func (v *Volume) ReadContent(name string) (io.Reader, error) {
	reader, err := v.OpenReader(name)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// OpenReader is [Volume.ReadContent] with the concrete reader type.
func (v *Volume) OpenReader(name string) (*ContentReader, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return nil, err
	}

	_, entry, err := v.findFile(name)
	if err != nil {
		return nil, err
	}
	if entry.IsDir() {
		return nil, errors.ErrIsADirectory.WithMessage(name)
	}

	return &ContentReader{
		volume:     v,
		name:       entry.DisplayName(),
		generation: v.generation,
		chain:      v.fat.ChainFrom(entry.StartCluster()),
		remaining:  int64(entry.FileSize),
	}, nil
}

// ReadFile returns the whole contents of the named file.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	reader, err := v.OpenReader(name)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	buffer.Grow(int(reader.Len()))
	_, err = buffer.ReadFrom(reader)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Attributes returns the metadata of the named file.
func (v *Volume) Attributes(name string) (fatimg.FileAttributes, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return fatimg.FileAttributes{}, err
	}

	_, entry, err := v.findFile(name)
	if err != nil {
		return fatimg.FileAttributes{}, err
	}
	return entry.FileAttributes(), nil
}

// Rename changes a file's name in place. Only the root directory is written.
// Renaming a file to a different spelling of its own name is allowed.
func (v *Volume) Rename(oldName, newName string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return err
	}

	slot, entry, err := v.findFile(oldName)
	if err != nil {
		return err
	}

	base, ext, err := EncodeName(newName)
	if err != nil {
		return err
	}
	otherSlot, _, exists := v.dir.FindByName(DecodeName(base, ext))
	if exists && otherSlot != slot {
		return errors.ErrNameConflict.WithMessage(newName)
	}

	previous := *entry
	entry.Name = base
	entry.Ext = ext
	entry.SetModified(v.now())

	if err = v.flushDirectory(); err != nil {
		*entry = previous
		if stageErr := v.stageDirectory(); stageErr != nil {
			v.log.Errorf("failed to restore directory after failed rename: %v", stageErr)
		}
		return err
	}

	v.generation++
	v.log.Debugf("renamed %s to %s (slot %d)", previous.DisplayName(), entry.DisplayName(), slot)
	return nil
}

// Delete frees a file's clusters and marks its directory entry deleted. The
// FAT is written before the directory.
//
// If the file's chain is corrupt, the clusters before the bad link are freed,
// a warning is logged, and the entry is still deleted.
func (v *Volume) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return err
	}

	slot, entry, err := v.findFile(name)
	if err != nil {
		return err
	}
	if entry.IsDir() {
		return errors.ErrIsADirectory.WithMessage(name)
	}

	snapshot := v.fat.Clone()
	released, chainErr := v.fat.ReleaseChain(entry.StartCluster())
	if chainErr != nil {
		v.log.Warnf(
			"deleting %s: %v; freed the %d clusters before the bad link",
			entry.DisplayName(),
			chainErr,
			released,
		)
	}

	if err = v.flushFAT(); err != nil {
		v.restoreFAT(snapshot, false)
		return err
	}

	previous := *entry
	entry.MarkDeleted()
	if err = v.flushDirectory(); err != nil {
		// The freed clusters are already on disk, so the FAT stays as it is.
		// Deleting again finishes the job.
		*entry = previous
		if stageErr := v.stageDirectory(); stageErr != nil {
			v.log.Errorf("failed to restore directory after failed delete: %v", stageErr)
		}
		return err
	}

	v.generation++
	v.log.Debugf("deleted %s from slot %d, freed %d clusters", name, slot, released)
	return nil
}

// Create stores `size` bytes read from `source` as a new file named `name`.
// Data clusters are written first, then the FAT, then the directory entry. If
// anything fails, the clusters reserved for the file are released.
func (v *Volume) Create(
	name string,
	source io.Reader,
	size int64,
	opts fatimg.CreateOptions,
) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return err
	}

	if size < 0 {
		return errors.ErrInvalidArgument.WithMessage(fmt.Sprintf("negative file size %d", size))
	}
	if size > math.MaxUint32 {
		return errors.ErrFileTooLarge.WithMessage(
			fmt.Sprintf("%d bytes exceeds the 4 GiB limit of FAT16", size))
	}

	base, ext, err := EncodeName(name)
	if err != nil {
		return err
	}
	if _, _, exists := v.dir.FindByName(DecodeName(base, ext)); exists {
		return errors.ErrNameConflict.WithMessage(name)
	}
	slot, ok := v.dir.FindFreeSlot()
	if !ok {
		return errors.ErrDirectoryFull.WithMessage(
			fmt.Sprintf("all %d entries are in use", v.dir.Len()))
	}

	snapshot := v.fat.Clone()
	chain, err := v.fat.AllocateChain(v.geometry.ClustersForSize(size))
	if err != nil {
		return err
	}

	if err = v.writeChain(chain, source, size); err != nil {
		v.restoreFAT(snapshot, false)
		return err
	}
	if err = v.flushFAT(); err != nil {
		v.restoreFAT(snapshot, true)
		return err
	}

	entry := DirectoryEntry{
		Name:       base,
		Ext:        ext,
		Attributes: opts.Flags(),
		FileSize:   uint32(size),
	}
	if len(chain) > 0 {
		entry.FirstCluster = uint16(chain[0])
	}
	entry.SetCreated(v.now())

	target := v.dir.Entry(slot)
	previous := *target
	*target = entry
	if err = v.flushDirectory(); err != nil {
		*target = previous
		if stageErr := v.stageDirectory(); stageErr != nil {
			v.log.Errorf("failed to restore directory after failed create: %v", stageErr)
		}
		v.restoreFAT(snapshot, true)
		return err
	}

	v.generation++
	v.log.Debugf(
		"created %s in slot %d: %d bytes in %d clusters",
		entry.DisplayName(),
		slot,
		size,
		len(chain),
	)
	return nil
}

// writeChain copies `size` bytes from `source` into the clusters of `chain`,
// zero-padding the last one.
func (v *Volume) writeChain(chain []c.ClusterID, source io.Reader, size int64) error {
	buffer := make([]byte, v.geometry.BytesPerCluster)
	remaining := size

	for _, cluster := range chain {
		chunkSize := int64(len(buffer))
		if remaining < chunkSize {
			chunkSize = remaining
		}

		read, err := io.ReadFull(source, buffer[:chunkSize])
		if err != nil {
			return errors.ErrIOFailed.WithMessage(
				fmt.Sprintf(
					"source ended after %d of %d bytes",
					size-remaining+int64(read),
					size,
				),
			).Wrap(err)
		}
		clear(buffer[chunkSize:])

		if err = v.image.WriteCluster(cluster, buffer); err != nil {
			return err
		}
		remaining -= chunkSize
	}
	return nil
}

// CreateFromHost copies the file at `hostPath` in `fs` into the volume as
// `name`. The host file's size at the time it's opened is authoritative, and
// it's stored read-only if its owner can't write to it.
func (v *Volume) CreateFromHost(fs afero.Fs, hostPath, name string) error {
	file, err := fs.Open(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrFileNotFound.WithMessage(hostPath).Wrap(err)
		}
		return errors.ErrIOFailed.Wrap(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	if info.IsDir() {
		return errors.ErrIsADirectory.WithMessage(hostPath)
	}

	opts := fatimg.CreateOptions{ReadOnly: fatimg.ReadOnlyFromMode(info.Mode())}
	return v.Create(name, file, info.Size(), opts)
}

// Stat summarizes the volume.
func (v *Volume) Stat() (fatimg.FSStat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.checkOpen(); err != nil {
		return fatimg.FSStat{}, err
	}

	files := uint(0)
	v.dir.Each(func(_ int, entry *DirectoryEntry) bool {
		if !entry.IsVolumeLabel() {
			files++
		}
		return true
	})

	return fatimg.FSStat{
		Label:             v.label(),
		OEMName:           string(bytes.TrimRight(v.boot.OEMName[:], " \x00")),
		SerialNumber:      v.boot.VolumeID,
		BytesPerSector:    v.geometry.BytesPerSector,
		SectorsPerCluster: v.geometry.SectorsPerCluster,
		BytesPerCluster:   v.geometry.BytesPerCluster,
		TotalSectors:      v.geometry.TotalSectors,
		TotalClusters:     v.geometry.TotalClusters,
		FreeClusters:      v.fat.FreeCount(),
		NumFATs:           v.geometry.NumFATs,
		RootEntries:       v.geometry.RootEntryCount,
		FreeRootEntries:   v.dir.FreeSlots(),
		Files:             files,
	}, nil
}

// Close flushes anything still pending and releases the image. The volume
// can't be used afterwards.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true

	var result *multierror.Error
	if err := v.meta.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if v.closer != nil {
		if err := v.closer.Close(); err != nil {
			result = multierror.Append(result, errors.ErrIOFailed.Wrap(err))
		}
	}
	return result.ErrorOrNil()
}
