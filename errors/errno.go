package errors

import "fmt"

// Errno is a POSIX error code. The values are the Linux ones; the syscall
// package doesn't define EUCLEAN or EMEDIUMTYPE on every platform.
type Errno int

const (
	EOK         Errno = 0
	ENOENT      Errno = 2
	EIO         Errno = 5
	EBADF       Errno = 9
	EEXIST      Errno = 17
	EISDIR      Errno = 21
	EINVAL      Errno = 22
	ENFILE      Errno = 23
	EFBIG       Errno = 27
	ENOSPC      Errno = 28
	EROFS       Errno = 30
	EDOM        Errno = 33
	EBADMSG     Errno = 74
	ENOTSUP     Errno = 95
	ESTALE      Errno = 116
	EUCLEAN     Errno = 117
	EMEDIUMTYPE Errno = 124
)

var errnoInfo = map[Errno]struct{ name, message string }{
	EOK:         {"EOK", "Success"},
	ENOENT:      {"ENOENT", "No such file or directory"},
	EIO:         {"EIO", "Input/output error"},
	EBADF:       {"EBADF", "Bad file descriptor"},
	EEXIST:      {"EEXIST", "File exists"},
	EISDIR:      {"EISDIR", "Is a directory"},
	EINVAL:      {"EINVAL", "Invalid argument"},
	ENFILE:      {"ENFILE", "Too many open files in system"},
	EFBIG:       {"EFBIG", "File too large"},
	ENOSPC:      {"ENOSPC", "No space left on device"},
	EROFS:       {"EROFS", "Read-only file system"},
	EDOM:        {"EDOM", "Numerical argument out of domain"},
	EBADMSG:     {"EBADMSG", "Bad message"},
	ENOTSUP:     {"ENOTSUP", "Operation not supported"},
	ESTALE:      {"ESTALE", "Stale file handle"},
	EUCLEAN:     {"EUCLEAN", "Structure needs cleaning"},
	EMEDIUMTYPE: {"EMEDIUMTYPE", "Wrong medium type"},
}

// StrError gives the C library's description of an error code.
func StrError(code Errno) string {
	if info, ok := errnoInfo[code]; ok {
		return info.message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

// String gives the symbolic name of the code, e.g. "ENOENT".
func (code Errno) String() string {
	if info, ok := errnoInfo[code]; ok {
		return info.name
	}
	return fmt.Sprintf("Errno(%d)", int(code))
}

// ExitCode gives a process exit status for an errno. Success is 0; everything
// else is offset so it never collides with the generic failure code 1.
func (code Errno) ExitCode() int {
	if code == EOK {
		return 0
	}
	return 10 + int(code)
}
