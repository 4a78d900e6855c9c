package fatimg

import (
	"os"
	"strings"
)

// AttrFlags is the attribute byte of a FAT directory entry.
type AttrFlags uint8

const (
	AttrReadOnly AttrFlags = 1 << iota // 0x01
	AttrHidden                         // 0x02
	AttrSystem                         // 0x04
	AttrVolumeID                       // 0x08
	AttrDirectory                      // 0x10
	AttrArchive                        // 0x20
)

// AttrLongName marks a VFAT long-name slot. It's a combination of bits that no
// real file carries, so anything with AttrVolumeID set is skipped as well.
const AttrLongName = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID

// Unix permission bits, used for mapping host files onto FAT attributes.
const (
	S_IXOTH = 1 << iota // 00001
	S_IWOTH             // 00002
	S_IROTH             // 00004
	S_IXGRP             // 00010
	S_IWGRP             // 00020
	S_IRGRP             // 00040
	S_IXUSR             // 00100
	S_IWUSR             // 00200
	S_IRUSR             // 00400
)

const S_IRWXU = S_IXUSR | S_IWUSR | S_IRUSR
const S_IRUGO = S_IRUSR | S_IRGRP | S_IROTH
const S_IWUGO = S_IWUSR | S_IWGRP | S_IWOTH

func (f AttrFlags) Has(flag AttrFlags) bool {
	return f&flag == flag
}

// String renders the flags as a fixed-width "RHSVDA" mask with '-' for bits
// that are clear, e.g. "R----A".
func (f AttrFlags) String() string {
	letters := "RHSVDA"
	var builder strings.Builder
	for i := 0; i < len(letters); i++ {
		if f&(1<<i) != 0 {
			builder.WriteByte(letters[i])
		} else {
			builder.WriteByte('-')
		}
	}
	return builder.String()
}

// Names lists the set flags by name, in bit order.
func (f AttrFlags) Names() []string {
	names := []string{"read-only", "hidden", "system", "volume-id", "directory", "archive"}
	result := make([]string, 0, len(names))
	for i, name := range names {
		if f&(1<<i) != 0 {
			result = append(result, name)
		}
	}
	return result
}

// Mode maps the attributes to a Unix-style mode. FAT has no notion of owners so
// the same permissions apply to everyone.
func (f AttrFlags) Mode() os.FileMode {
	mode := os.FileMode(S_IRUGO)
	if !f.Has(AttrReadOnly) {
		mode |= S_IWUGO
	}
	if f.Has(AttrDirectory) {
		mode |= os.ModeDir | S_IXUSR | S_IXGRP | S_IXOTH
	}
	return mode
}

// ReadOnlyFromMode reports whether a host file should be stored read-only,
// i.e. its owner can't write to it.
func ReadOnlyFromMode(mode os.FileMode) bool {
	return mode.Perm()&S_IWUSR == 0
}
