package errors

// Volume-level failures.
var ErrImageUnreadable = newKind(EIO, "image unreadable")
var ErrInvalidVolume = newKind(EMEDIUMTYPE, "not a valid FAT16 volume")
var ErrMalformedRecord = newKind(EBADMSG, "malformed on-disk record")
var ErrVolumeClosed = newKind(EBADF, "volume is closed")

// File-level failures.
var ErrFileNotFound = newKind(ENOENT, "file not found")
var ErrNameConflict = newKind(EEXIST, "a file with that name already exists")
var ErrInvalidName = newKind(EINVAL, "invalid 8.3 file name")
var ErrIsADirectory = New(EISDIR)
var ErrFileTooLarge = New(EFBIG)
var ErrStaleHandle = newKind(ESTALE, "volume changed since the reader was opened")

// Space and consistency failures.
var ErrDirectoryFull = newKind(ENFILE, "root directory is full")
var ErrDiskFull = newKind(ENOSPC, "not enough free clusters")
var ErrCorruptChain = newKind(EUCLEAN, "corrupt cluster chain")
var ErrInconsistent = newKind(EUCLEAN, "file system check found problems")

// General failures.
var ErrIOFailed = New(EIO)
var ErrInvalidArgument = New(EINVAL)
var ErrArgumentOutOfRange = New(EDOM)
var ErrNotSupported = New(ENOTSUP)
