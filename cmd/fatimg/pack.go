package main

import (
	"fmt"
	"os"

	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/fatimg/fatimg/utilities/compression"
	"github.com/fatimg/fatimg/utilities/logger"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// createOutput opens `path` for writing, refusing to replace an existing file
// unless `force` is set.
func createOutput(fs afero.Fs, path string, force bool) (afero.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if force {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := fs.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.ErrNameConflict.WithMessage(
				fmt.Sprintf("%s already exists; use --force to overwrite it", path))
		}
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return file, nil
}

func (r *runner) openHostFile(path string) (afero.File, error) {
	file, err := r.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrFileNotFound.WithMessage(path).Wrap(err)
		}
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return file, nil
}

func (r *runner) packImage(c *cli.Context) error {
	if err := requireArgs(c, 0, 1); err != nil {
		return err
	}
	imagePath, err := r.imagePath()
	if err != nil {
		return err
	}
	codec, err := compression.ParseCodec(c.String("codec"))
	if err != nil {
		return err
	}

	// Packing a file that isn't a FAT16 image is almost certainly a mistake.
	volume, err := fat16.MountFs(r.fs, imagePath)
	if err != nil {
		return err
	}
	if err = volume.Close(); err != nil {
		return err
	}

	input, err := r.openHostFile(imagePath)
	if err != nil {
		return err
	}
	defer input.Close()

	outputPath := c.Args().First()
	if outputPath == "" {
		outputPath = imagePath + codec.Extension()
	}
	output, err := createOutput(r.fs, outputPath, c.Bool("force"))
	if err != nil {
		return err
	}

	packedSize, err := compression.PackImage(input, output, codec)
	if closeErr := output.Close(); err == nil && closeErr != nil {
		err = errors.ErrIOFailed.Wrap(closeErr)
	}
	if err != nil {
		return err
	}

	logger.Logger().Infof("packed %s into %s", imagePath, outputPath)
	fmt.Fprintf(c.App.Writer, "Packed %s into %s (%d bytes).\n", imagePath, outputPath, packedSize)
	return nil
}

func (r *runner) unpackImage(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	imagePath, err := r.imagePath()
	if err != nil {
		return err
	}

	inputPath := c.Args().First()
	input, err := r.openHostFile(inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	if !c.Bool("force") {
		exists, err := afero.Exists(r.fs, imagePath)
		if err != nil {
			return errors.ErrIOFailed.Wrap(err)
		}
		if exists {
			return errors.ErrNameConflict.WithMessage(
				fmt.Sprintf("%s already exists; use --force to overwrite it", imagePath))
		}
	}

	// The existing image is only replaced once the packed copy has been
	// restored completely.
	partialPath := imagePath + ".partial"
	output, err := createOutput(r.fs, partialPath, true)
	if err != nil {
		return err
	}

	imageSize, err := compression.UnpackImage(input, output)
	if closeErr := output.Close(); err == nil && closeErr != nil {
		err = errors.ErrIOFailed.Wrap(closeErr)
	}
	if err == nil {
		if renameErr := r.fs.Rename(partialPath, imagePath); renameErr != nil {
			err = errors.ErrIOFailed.Wrap(renameErr)
		}
	}
	if err != nil {
		r.fs.Remove(partialPath)
		return err
	}

	logger.Logger().Infof("unpacked %s into %s", inputPath, imagePath)
	fmt.Fprintf(c.App.Writer, "Unpacked %s into %s (%d bytes).\n", inputPath, imagePath, imageSize)
	return nil
}
