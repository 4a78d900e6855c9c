package fat16

import (
	"fmt"
	"strings"

	"github.com/fatimg/fatimg/errors"
)

// Characters that can never appear in a short name, besides control bytes and
// anything outside ASCII.
const illegalNameChars = " \"*+,./:;<=>?[\\]|"

func checkNameChars(part, name string) error {
	for i := 0; i < len(part); i++ {
		ch := part[i]
		if ch < 0x20 || ch >= 0x7f || strings.IndexByte(illegalNameChars, ch) >= 0 {
			return errors.ErrInvalidName.WithMessage(
				fmt.Sprintf("%q contains illegal character %q", name, ch))
		}
	}
	return nil
}

// EncodeName converts a file name into its space-padded, uppercase 8.3 form.
// The extension is everything after the last period.
func EncodeName(name string) ([8]byte, [3]byte, error) {
	var base [8]byte
	var ext [3]byte

	stem := name
	extension := ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		stem = name[:dot]
		extension = name[dot+1:]
	}

	if stem == "" {
		return base, ext, errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q has an empty base name", name))
	}
	if len(stem) > len(base) {
		return base, ext, errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("base name can be at most 8 characters: %q", stem))
	}
	if len(extension) > len(ext) {
		return base, ext, errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("extension can be at most 3 characters: %q", extension))
	}
	if err := checkNameChars(stem, name); err != nil {
		return base, ext, err
	}
	if err := checkNameChars(extension, name); err != nil {
		return base, ext, err
	}

	copy(base[:], fmt.Sprintf("%-8s", strings.ToUpper(stem)))
	copy(ext[:], fmt.Sprintf("%-3s", strings.ToUpper(extension)))
	return base, ext, nil
}

// DecodeName converts the on-disk 8.3 fields back into "NAME.EXT". The period
// is only present if the extension is.
func DecodeName(base [8]byte, ext [3]byte) string {
	if base[0] == markerEscapedE5 {
		base[0] = markerDeleted
	}
	stem := strings.TrimRight(string(base[:]), " ")
	extension := strings.TrimRight(string(ext[:]), " ")
	if extension == "" {
		return stem
	}
	return stem + "." + extension
}

// NormalizeName gives the canonical form of `name`, i.e. what it would read
// back as after being stored.
func NormalizeName(name string) (string, error) {
	base, ext, err := EncodeName(name)
	if err != nil {
		return "", err
	}
	return DecodeName(base, ext), nil
}
