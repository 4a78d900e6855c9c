package fat16

import (
	"fmt"
	"strings"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
)

// Directory is an in-memory copy of the fixed-size root directory table.
type Directory struct {
	entries []DirectoryEntry
}

// NewDirectoryFromBytes decodes `count` consecutive directory entries from
// `raw`.
func NewDirectoryFromBytes(raw []byte, count uint) (*Directory, error) {
	if uint(len(raw)) < count*DirentSize {
		return nil, errors.ErrMalformedRecord.WithMessage(
			fmt.Sprintf(
				"root directory needs %d bytes for %d entries, got %d",
				count*DirentSize,
				count,
				len(raw),
			),
		)
	}

	dir := &Directory{entries: make([]DirectoryEntry, count)}
	for i := range dir.entries {
		entry, err := DecodeDirectoryEntry(raw[i*DirentSize:])
		if err != nil {
			return nil, err
		}
		dir.entries[i] = entry
	}
	return dir, nil
}

// Len gives the capacity of the directory, in entries.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Entry returns a pointer to the entry in slot `slot`.
func (d *Directory) Entry(slot int) *DirectoryEntry {
	return &d.entries[slot]
}

// Bytes encodes the whole table.
func (d *Directory) Bytes() []byte {
	raw := make([]byte, len(d.entries)*DirentSize)
	for i := range d.entries {
		// Can't fail, the buffer is always big enough.
		_ = d.entries[i].Encode(raw[i*DirentSize:])
	}
	return raw
}

// Each calls `fn` for every slot up to the end-of-directory marker, skipping
// deleted entries. Iteration stops early if `fn` returns false.
func (d *Directory) Each(fn func(slot int, entry *DirectoryEntry) bool) {
	for i := range d.entries {
		entry := &d.entries[i]
		if entry.IsEndOfDirectory() {
			return
		}
		if entry.IsDeleted() {
			continue
		}
		if !fn(i, entry) {
			return
		}
	}
}

// FindByName looks up a file by name, ignoring case. Volume labels are never
// matched.
func (d *Directory) FindByName(name string) (int, *DirectoryEntry, bool) {
	foundSlot := -1
	var found *DirectoryEntry

	d.Each(func(slot int, entry *DirectoryEntry) bool {
		if entry.IsVolumeLabel() {
			return true
		}
		if strings.EqualFold(entry.DisplayName(), name) {
			foundSlot = slot
			found = entry
			return false
		}
		return true
	})
	return foundSlot, found, found != nil
}

// FindFreeSlot returns the first slot that is unused or deleted.
func (d *Directory) FindFreeSlot() (int, bool) {
	for i := range d.entries {
		if d.entries[i].IsFree() {
			return i, true
		}
	}
	return -1, false
}

// FreeSlots counts the slots available for new files.
func (d *Directory) FreeSlots() uint {
	count := uint(0)
	for i := range d.entries {
		if d.entries[i].IsFree() {
			count++
		}
	}
	return count
}

// VolumeLabel returns the name stored in the volume-id entry, if there is one.
func (d *Directory) VolumeLabel() (string, bool) {
	label := ""
	found := false
	d.Each(func(_ int, entry *DirectoryEntry) bool {
		if entry.Attributes.Has(fatimg.AttrLongName) {
			return true
		}
		if entry.IsVolumeLabel() {
			label = strings.TrimRight(string(entry.Name[:])+string(entry.Ext[:]), " ")
			found = true
			return false
		}
		return true
	})
	return label, found
}
