package fat16

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	c "github.com/fatimg/fatimg/file_systems/common"
	"github.com/google/uuid"
)

// FormatOptions describes a new volume. Zero values get sensible defaults.
type FormatOptions struct {
	TotalSectors   uint
	BytesPerSector uint
	// SectorsPerCluster is picked automatically if 0: the smallest power of 2
	// that keeps the cluster count in FAT16 range.
	SectorsPerCluster uint
	ReservedSectors   uint
	NumFATs           uint
	RootEntries       uint
	Media             uint8
	SectorsPerTrack   uint
	Heads             uint
	OEMName           string
	// Label is written to both the boot sector and a volume-id entry in the
	// root directory. Leave it empty for an unlabeled volume.
	Label string
	// VolumeID is the volume serial number. A random one is generated if it's 0.
	VolumeID uint32
	// Now is the timestamp of the volume-id entry. Defaults to the current time.
	Now time.Time
}

func (opts *FormatOptions) setDefaults() {
	if opts.BytesPerSector == 0 {
		opts.BytesPerSector = 512
	}
	if opts.ReservedSectors == 0 {
		opts.ReservedSectors = 1
	}
	if opts.NumFATs == 0 {
		opts.NumFATs = 2
	}
	if opts.RootEntries == 0 {
		opts.RootEntries = 512
	}
	if opts.Media == 0 {
		opts.Media = 0xF8
	}
	if opts.SectorsPerTrack == 0 {
		opts.SectorsPerTrack = 63
	}
	if opts.Heads == 0 {
		opts.Heads = 255
	}
	if opts.OEMName == "" {
		opts.OEMName = "FATIMG"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.VolumeID == 0 {
		opts.VolumeID = uuid.New().ID()
	}
}

// layoutFAT computes the sectors per FAT for a given cluster size. Growing the
// FAT shrinks the data region, so this iterates until it settles.
func layoutFAT(opts *FormatOptions, sectorsPerCluster uint) (sectorsPerFAT, clusters uint) {
	rootDirSectors := c.CeilDiv(opts.RootEntries*DirentSize, opts.BytesPerSector)
	sectorsPerFAT = 1
	for {
		overhead := opts.ReservedSectors + opts.NumFATs*sectorsPerFAT + rootDirSectors
		if overhead >= opts.TotalSectors {
			return sectorsPerFAT, 0
		}
		clusters = (opts.TotalSectors - overhead) / sectorsPerCluster
		needed := c.CeilDiv((clusters+2)*2, opts.BytesPerSector)
		if needed <= sectorsPerFAT {
			return sectorsPerFAT, clusters
		}
		sectorsPerFAT = needed
	}
}

func encodeLabel(label string) ([11]byte, error) {
	var raw [11]byte
	if len(label) > len(raw) {
		return raw, errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("volume label can be at most 11 characters: %q", label))
	}
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch != ' ' && (ch < 0x20 || ch >= 0x7f || strings.IndexByte(illegalNameChars, ch) >= 0) {
			return raw, errors.ErrInvalidName.WithMessage(
				fmt.Sprintf("volume label %q contains illegal character %q", label, ch))
		}
	}
	copy(raw[:], fmt.Sprintf("%-11s", strings.ToUpper(label)))
	return raw, nil
}

// NewBootSector builds the boot sector for a volume described by `opts`. It
// fails with [errors.ErrInvalidVolume] if no valid FAT16 layout exists.
func NewBootSector(opts FormatOptions) (BootSector, error) {
	opts.setDefaults()

	if opts.TotalSectors == 0 {
		return BootSector{}, invalidVolume("total sector count is 0")
	}
	if opts.BytesPerSector == 0 || opts.BytesPerSector&(opts.BytesPerSector-1) != 0 {
		return BootSector{}, invalidVolume("BytesPerSector must be a power of 2")
	}

	sectorsPerCluster := opts.SectorsPerCluster
	if sectorsPerCluster == 0 {
		for sectorsPerCluster = 1; sectorsPerCluster < 128; sectorsPerCluster *= 2 {
			_, clusters := layoutFAT(&opts, sectorsPerCluster)
			if clusters < 65525 {
				break
			}
		}
	}
	sectorsPerFAT, _ := layoutFAT(&opts, sectorsPerCluster)

	if sectorsPerCluster > 255 || opts.ReservedSectors > 0xFFFF || opts.NumFATs > 255 ||
		opts.RootEntries > 0xFFFF || sectorsPerFAT > 0xFFFF {
		return BootSector{}, invalidVolume("volume parameters are out of range for FAT16")
	}

	label := "NO NAME"
	if opts.Label != "" {
		label = opts.Label
	}
	labelBytes, err := encodeLabel(label)
	if err != nil {
		return BootSector{}, err
	}

	bs := BootSector{
		JmpBoot:           [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:    uint16(opts.BytesPerSector),
		SectorsPerCluster: uint8(sectorsPerCluster),
		ReservedSectors:   uint16(opts.ReservedSectors),
		NumFATs:           uint8(opts.NumFATs),
		RootEntryCount:    uint16(opts.RootEntries),
		Media:             opts.Media,
		SectorsPerFAT:     uint16(sectorsPerFAT),
		SectorsPerTrack:   uint16(opts.SectorsPerTrack),
		NumHeads:          uint16(opts.Heads),
		DriveNumber:       0x80,
		BootSignature:     extendedBootSignature,
		VolumeID:          opts.VolumeID,
		VolumeLabel:       labelBytes,
	}
	copy(bs.OEMName[:], fmt.Sprintf("%-8.8s", opts.OEMName))
	copy(bs.FSType[:], "FAT16   ")
	if opts.TotalSectors <= 0xFFFF {
		bs.TotalSectors16 = uint16(opts.TotalSectors)
	} else {
		bs.TotalSectors32 = uint32(opts.TotalSectors)
	}

	if err = bs.Validate(); err != nil {
		return BootSector{}, err
	}
	return bs, nil
}

// Format writes a blank FAT16 volume to `stream`: the boot sector, every FAT
// copy and an empty root directory. The data region isn't touched except for
// the last sector, which is zeroed so the image has its full size.
func Format(stream io.WriteSeeker, opts FormatOptions) (BootSector, error) {
	opts.setDefaults()
	bs, err := NewBootSector(opts)
	if err != nil {
		return bs, err
	}
	geometry := NewGeometry(bs)

	metadata := make([]byte, geometry.SectorOffset(geometry.DataStart))

	if err = bs.Encode(metadata); err != nil {
		return bs, err
	}
	metadata[SignatureOffset] = 0x55
	metadata[SignatureOffset+1] = 0xAA

	for i := uint(0); i < geometry.NumFATs; i++ {
		fat := metadata[geometry.SectorOffset(geometry.FATCopyStart(i)):]
		binary.LittleEndian.PutUint16(fat[0:2], 0xFF00|uint16(bs.Media))
		binary.LittleEndian.PutUint16(fat[2:4], EndOfChain)
	}

	if opts.Label != "" {
		entry := DirectoryEntry{Attributes: fatimg.AttrVolumeID}
		copy(entry.Name[:], bs.VolumeLabel[:8])
		copy(entry.Ext[:], bs.VolumeLabel[8:])
		entry.SetModified(opts.Now)
		err = entry.Encode(metadata[geometry.SectorOffset(geometry.RootDirStart):])
		if err != nil {
			return bs, err
		}
	}

	img := imageIO{stream: &writeOnly{stream}, geometry: geometry}
	if err = img.WriteAt(metadata, 0); err != nil {
		return bs, err
	}

	lastSector := make([]byte, geometry.BytesPerSector)
	lastSectorOffset := geometry.SectorOffset(c.SectorID(geometry.TotalSectors - 1))
	if err = img.WriteAt(lastSector, lastSectorOffset); err != nil {
		return bs, err
	}
	return bs, nil
}

// writeOnly adapts an [io.WriteSeeker] to the [io.ReadWriteSeeker] that
// imageIO expects. Format never reads.
type writeOnly struct {
	io.WriteSeeker
}

func (w *writeOnly) Read([]byte) (int, error) {
	return 0, errors.ErrNotSupported.WithMessage("format stream is write-only")
}
