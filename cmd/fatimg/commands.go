package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/disks"
	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/fatimg/fatimg/utilities/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

func (r *runner) imagePath() (string, error) {
	if r.cfg.Image == "" {
		return "", errors.ErrInvalidArgument.WithMessage(
			"no image given; pass --image or set `image` in the configuration file")
	}
	return r.cfg.Image, nil
}

// withVolume mounts the configured image, runs `fn` and closes the volume. An
// error from Close is only reported if `fn` succeeded.
func (r *runner) withVolume(fn func(volume *fat16.Volume) error) (err error) {
	path, err := r.imagePath()
	if err != nil {
		return err
	}

	volume, err := fat16.MountFs(r.fs, path)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := volume.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(volume)
}

func requireArgs(c *cli.Context, min, max int) error {
	if c.NArg() < min || c.NArg() > max {
		if min == max {
			return errors.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("%s takes %d arguments, got %d", c.Command.Name, min, c.NArg()))
		}
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%s takes %d to %d arguments, got %d", c.Command.Name, min, max, c.NArg()))
	}
	return nil
}

func (r *runner) outputFormat(c *cli.Context) string {
	if c.IsSet("format") {
		return c.String("format")
	}
	return r.cfg.Output.Format
}

func (r *runner) formatImage(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	path, err := r.imagePath()
	if err != nil {
		return err
	}

	var opts fat16.FormatOptions
	if c.IsSet("preset") {
		preset, err := disks.GetPreset(c.String("preset"))
		if err != nil {
			return err
		}
		opts = preset.FormatOptions()
	} else if c.IsSet("sectors") {
		opts.TotalSectors = c.Uint("sectors")
	} else {
		return errors.ErrInvalidArgument.WithMessage("either --preset or --sectors is required")
	}
	if c.IsSet("sectors-per-cluster") {
		opts.SectorsPerCluster = c.Uint("sectors-per-cluster")
	}
	if c.IsSet("root-entries") {
		opts.RootEntries = c.Uint("root-entries")
	}
	opts.Label = c.String("label")

	// Validate before touching the host file system.
	if _, err = fat16.NewBootSector(opts); err != nil {
		return err
	}

	flags := os.O_RDWR | os.O_CREATE
	if c.Bool("force") {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := r.fs.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.ErrNameConflict.WithMessage(
				fmt.Sprintf("%s already exists; use --force to overwrite it", path))
		}
		return errors.ErrIOFailed.Wrap(err)
	}
	defer file.Close()

	bs, err := fat16.Format(file, opts)
	if err != nil {
		return err
	}

	geometry := fat16.NewGeometry(bs)
	logger.Logger().Infof("formatted %s", path)
	fmt.Fprintf(
		c.App.Writer,
		"Formatted %s: %d clusters of %d bytes, %d root entries.\n",
		path,
		geometry.TotalClusters,
		geometry.BytesPerCluster,
		geometry.RootEntryCount,
	)
	return nil
}

func (r *runner) listPresets(c *cli.Context) error {
	return printPresets(c.App.Writer, disks.Presets(), r.outputFormat(c))
}

func (r *runner) showInfo(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		stat, err := volume.Stat()
		if err != nil {
			return err
		}
		return printStat(c.App.Writer, stat, r.outputFormat(c))
	})
}

func (r *runner) listFiles(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		files, err := volume.List()
		if err != nil {
			return err
		}
		return printListing(c.App.Writer, files, r.outputFormat(c))
	})
}

func (r *runner) catFile(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		reader, err := volume.ReadContent(c.Args().First())
		if err != nil {
			return err
		}
		_, err = io.Copy(c.App.Writer, reader)
		return err
	})
}

func (r *runner) statFile(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		attrs, err := volume.Attributes(c.Args().First())
		if err != nil {
			return err
		}
		return printAttributes(c.App.Writer, attrs, r.outputFormat(c), r.cfg.Output)
	})
}

func newProgressBar(c *cli.Context, size int64, description string) *progressbar.ProgressBar {
	var writer io.Writer = c.App.ErrWriter
	if writer == nil {
		writer = os.Stderr
	}
	if c.Bool("quiet") {
		writer = io.Discard
	}

	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (r *runner) getFile(c *cli.Context) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}
	name := c.Args().Get(0)
	hostPath := c.Args().Get(1)
	if hostPath == "" {
		hostPath = strings.ToUpper(name)
	}

	return r.withVolume(func(volume *fat16.Volume) error {
		reader, err := volume.OpenReader(name)
		if err != nil {
			return err
		}

		output, err := r.fs.Create(hostPath)
		if err != nil {
			return errors.ErrIOFailed.Wrap(err)
		}
		defer output.Close()

		bar := newProgressBar(c, reader.Len(), name)
		if _, err = io.Copy(io.MultiWriter(output, bar), reader); err != nil {
			return err
		}
		bar.Finish()
		return nil
	})
}

func (r *runner) putFile(c *cli.Context) error {
	if err := requireArgs(c, 1, 2); err != nil {
		return err
	}
	hostPath := c.Args().Get(0)
	name := c.Args().Get(1)
	if name == "" {
		name = filepath.Base(hostPath)
	}

	file, err := r.openHostFile(hostPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	if info.IsDir() {
		return errors.ErrIsADirectory.WithMessage(hostPath)
	}

	opts := fatimg.CreateOptions{
		ReadOnly: c.Bool("read-only") || fatimg.ReadOnlyFromMode(info.Mode()),
		Hidden:   c.Bool("hidden"),
		System:   c.Bool("system"),
	}

	return r.withVolume(func(volume *fat16.Volume) error {
		bar := newProgressBar(c, info.Size(), name)
		err := volume.Create(name, io.TeeReader(file, bar), info.Size(), opts)
		if err != nil {
			return err
		}
		bar.Finish()
		fmt.Fprintf(c.App.Writer, "Created %s (%d bytes).\n", strings.ToUpper(name), info.Size())
		return nil
	})
}

func (r *runner) renameFile(c *cli.Context) error {
	if err := requireArgs(c, 2, 2); err != nil {
		return err
	}
	oldName := c.Args().Get(0)
	newName := c.Args().Get(1)
	return r.withVolume(func(volume *fat16.Volume) error {
		if err := volume.Rename(oldName, newName); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Renamed %s to %s.\n", strings.ToUpper(oldName), strings.ToUpper(newName))
		return nil
	})
}

func (r *runner) deleteFile(c *cli.Context) error {
	if err := requireArgs(c, 1, 1); err != nil {
		return err
	}
	name := c.Args().First()
	return r.withVolume(func(volume *fat16.Volume) error {
		if err := volume.Delete(name); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Deleted %s.\n", strings.ToUpper(name))
		return nil
	})
}

func (r *runner) checkVolume(c *cli.Context) error {
	if err := requireArgs(c, 0, 0); err != nil {
		return err
	}
	return r.withVolume(func(volume *fat16.Volume) error {
		report, checkErr := volume.Check()
		if err := printCheckReport(c.App.Writer, report, r.outputFormat(c)); err != nil {
			return err
		}
		return checkErr
	})
}
