package fatimg

import "github.com/fatimg/fatimg/errors"

// Error kinds returned by [Manager] implementations. They alias the sentinels
// in the errors package so callers only need one import.
var (
	ErrImageUnreadable = errors.ErrImageUnreadable
	ErrInvalidVolume   = errors.ErrInvalidVolume
	ErrMalformedRecord = errors.ErrMalformedRecord
	ErrFileNotFound    = errors.ErrFileNotFound
	ErrNameConflict    = errors.ErrNameConflict
	ErrInvalidName     = errors.ErrInvalidName
	ErrDirectoryFull   = errors.ErrDirectoryFull
	ErrDiskFull        = errors.ErrDiskFull
	ErrCorruptChain    = errors.ErrCorruptChain
	ErrIsADirectory    = errors.ErrIsADirectory
	ErrStaleHandle     = errors.ErrStaleHandle
	ErrFileTooLarge    = errors.ErrFileTooLarge
	ErrVolumeClosed    = errors.ErrVolumeClosed
)
