package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/fatimg/fatimg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorWithMessage(t *testing.T) {
	newErr := errors.ErrFileNotFound.WithMessage("README.TXT")
	assert.Equal(t, "file not found: README.TXT", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, errors.ErrFileNotFound)
	assert.Equal(t, errors.ENOENT, newErr.Errno())
}

func TestDriverErrorWrap(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := errors.ErrImageUnreadable.Wrap(originalErr)
	expectedMessage := "image unreadable: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, errors.ErrImageUnreadable, "driver error not set as parent")
}

func TestDriverErrorWrap__Chained(t *testing.T) {
	originalErr := stderrors.New("short read")
	newErr := errors.ErrCorruptChain.WithMessage("cluster 7").Wrap(originalErr)

	assert.ErrorIs(t, newErr, errors.ErrCorruptChain)
	assert.ErrorIs(t, newErr, originalErr)
	assert.Equal(t, errors.EUCLEAN, newErr.Errno())
}

func TestKindsSharingErrnoAreDistinct(t *testing.T) {
	assert.NotErrorIs(t, errors.ErrIOFailed, errors.ErrImageUnreadable)
	assert.NotErrorIs(t, errors.ErrInvalidName, errors.ErrInvalidArgument)
	assert.NotErrorIs(t, errors.ErrInconsistent, errors.ErrCorruptChain)
	assert.Equal(t, errors.ErrIOFailed.Errno(), errors.ErrImageUnreadable.Errno())
}

func TestNewWithMessage(t *testing.T) {
	err := errors.NewWithMessage(errors.ENOSPC, "need 3 clusters")
	assert.Equal(t, "No space left on device: need 3 clusters", err.Error())
	assert.Equal(t, errors.ENOSPC, err.Errno())
	assert.Nil(t, err.Unwrap())
}

func TestErrnoOf(t *testing.T) {
	assert.Equal(t, errors.EOK, errors.ErrnoOf(nil))
	assert.Equal(t, errors.EIO, errors.ErrnoOf(stderrors.New("plain")))
	assert.Equal(
		t,
		errors.ENFILE,
		errors.ErrnoOf(fmt.Errorf("create: %w", errors.ErrDirectoryFull)),
	)
}

func TestStrError__Unknown(t *testing.T) {
	assert.Equal(t, "error 999 not recognized.", errors.StrError(errors.Errno(999)))
	assert.Equal(t, 0, errors.EOK.ExitCode())
	assert.Equal(t, 12, errors.ENOENT.ExitCode())
}

func TestErrnoString(t *testing.T) {
	assert.Equal(t, "EUCLEAN", errors.EUCLEAN.String())
	assert.Equal(t, "Errno(999)", errors.Errno(999).String())
	assert.Equal(t, "Structure needs cleaning", errors.StrError(errors.EUCLEAN))
}
