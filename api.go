package fatimg

import (
	"io"
	"time"

	"github.com/spf13/afero"
)

// Manager is the set of file-level operations on a mounted FAT16 volume. All
// names are 8.3 short names and are matched case-insensitively.
type Manager interface {
	// List returns the regular files in the root directory, in slot order.
	List() ([]FileSummary, error)
	// ReadContent returns a reader over the contents of the named file. The
	// reader becomes invalid once the volume is modified.
	ReadContent(name string) (io.Reader, error)
	// ReadFile returns the full contents of the named file.
	ReadFile(name string) ([]byte, error)
	Attributes(name string) (FileAttributes, error)
	Rename(oldName, newName string) error
	Delete(name string) error
	// Create stores exactly `size` bytes read from `source` as a new file.
	Create(name string, source io.Reader, size int64, opts CreateOptions) error
	// CreateFromHost copies a file from `fs` into the volume. The read-only
	// attribute is derived from the host file's permissions.
	CreateFromHost(fs afero.Fs, hostPath, name string) error
	Stat() (FSStat, error)
	Check() (CheckReport, error)
	Close() error
}

// FileSummary is one row of a directory listing.
type FileSummary struct {
	Name string `json:"name" yaml:"name" csv:"name"`
	Size uint32 `json:"size" yaml:"size" csv:"size"`
}

// FileAttributes is the full metadata of a directory entry. The raw FAT date
// and time words are kept alongside the decoded timestamps.
type FileAttributes struct {
	Name         string    `yaml:"name"`
	Size         uint32    `yaml:"size"`
	FirstCluster uint16    `yaml:"first_cluster"`
	Flags        AttrFlags `yaml:"-"`
	FlagNames    []string  `yaml:"flags"`

	Created  time.Time `yaml:"created"`
	Modified time.Time `yaml:"modified"`
	Accessed time.Time `yaml:"accessed"`

	CreateDate   uint16 `yaml:"-"`
	CreateTime   uint16 `yaml:"-"`
	CreateTenths uint8  `yaml:"-"`
	ModifyDate   uint16 `yaml:"-"`
	ModifyTime   uint16 `yaml:"-"`
	AccessDate   uint16 `yaml:"-"`
}

func (a FileAttributes) IsReadOnly() bool { return a.Flags.Has(AttrReadOnly) }
func (a FileAttributes) IsHidden() bool   { return a.Flags.Has(AttrHidden) }
func (a FileAttributes) IsSystem() bool   { return a.Flags.Has(AttrSystem) }
func (a FileAttributes) IsArchive() bool  { return a.Flags.Has(AttrArchive) }
func (a FileAttributes) IsDir() bool      { return a.Flags.Has(AttrDirectory) }

// DateLayout and TimeLayout are the default layouts for printing timestamps.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04:05"
)

// FormatDate renders a timestamp as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTime renders a timestamp as HH:MM:SS.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// CreateOptions controls the attribute bits of a new file. The archive bit is
// always set.
type CreateOptions struct {
	ReadOnly bool
	Hidden   bool
	System   bool
}

// Flags gives the attribute byte a file created with these options gets.
func (o CreateOptions) Flags() AttrFlags {
	flags := AttrArchive
	if o.ReadOnly {
		flags |= AttrReadOnly
	}
	if o.Hidden {
		flags |= AttrHidden
	}
	if o.System {
		flags |= AttrSystem
	}
	return flags
}

// FSStat summarizes a mounted volume.
type FSStat struct {
	Label             string `yaml:"label"`
	OEMName           string `yaml:"oem_name"`
	SerialNumber      uint32 `yaml:"serial_number"`
	BytesPerSector    uint   `yaml:"bytes_per_sector"`
	SectorsPerCluster uint   `yaml:"sectors_per_cluster"`
	BytesPerCluster   uint   `yaml:"bytes_per_cluster"`
	TotalSectors      uint   `yaml:"total_sectors"`
	TotalClusters     uint   `yaml:"total_clusters"`
	FreeClusters      uint   `yaml:"free_clusters"`
	NumFATs           uint   `yaml:"fat_copies"`
	RootEntries       uint   `yaml:"root_entries"`
	FreeRootEntries   uint   `yaml:"free_root_entries"`
	Files             uint   `yaml:"files"`
}

// FreeBytes gives the space available for file data.
func (s FSStat) FreeBytes() int64 {
	return int64(s.FreeClusters) * int64(s.BytesPerCluster)
}

// CheckReport is the outcome of a consistency check. Each slice lists problems
// of one kind; an empty report means the volume is consistent.
type CheckReport struct {
	CorruptChains     []string `yaml:"corrupt_chains,omitempty"`
	CrossLinked       []uint16 `yaml:"cross_linked,omitempty"`
	SizeMismatches    []string `yaml:"size_mismatches,omitempty"`
	LostClusters      []uint16 `yaml:"lost_clusters,omitempty"`
	FATCopyMismatches []int    `yaml:"fat_copy_mismatches,omitempty"`
}

// Clean is true if no problems were found.
func (r CheckReport) Clean() bool {
	return len(r.CorruptChains) == 0 &&
		len(r.CrossLinked) == 0 &&
		len(r.SizeMismatches) == 0 &&
		len(r.LostClusters) == 0 &&
		len(r.FATCopyMismatches) == 0
}
