package main

import (
	"fmt"
	"os"

	"github.com/fatimg/fatimg/config"
	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/utilities/logger"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// runner holds what every command needs. The file system is swappable so the
// commands can run against in-memory images.
type runner struct {
	fs  afero.Fs
	cfg config.Config
}

func main() {
	app := newApp(afero.NewOsFs())
	err := app.Run(os.Args)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatimg: %s\n", err.Error())
		os.Exit(errors.ErrnoOf(err).ExitCode())
	}
}

func newApp(fs afero.Fs) *cli.App {
	r := &runner{fs: fs, cfg: config.Default()}

	imageFlag := &cli.StringFlag{
		Name:    "image",
		Aliases: []string{"i"},
		Usage:   "path to the FAT16 disk image",
		EnvVars: []string{"FATIMG_IMAGE"},
	}

	return &cli.App{
		Name:  "fatimg",
		Usage: "Inspect and modify the root directory of FAT16 disk images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML configuration file",
				Value: config.DefaultPath,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console or json",
			},
			imageFlag,
		},
		Before: r.setup,
		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "Create a blank FAT16 image",
				Action: r.formatImage,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "preset",
						Usage: "predefined disk layout; see list-presets",
					},
					&cli.UintFlag{
						Name:  "sectors",
						Usage: "total sectors, if no preset is given",
					},
					&cli.UintFlag{
						Name:  "sectors-per-cluster",
						Usage: "cluster size in sectors; chosen automatically if 0",
					},
					&cli.UintFlag{
						Name:  "root-entries",
						Usage: "number of root directory entries",
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "volume label, up to 11 characters",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite the image if it already exists",
					},
				},
			},
			{
				Name:   "list-presets",
				Usage:  "Show the predefined disk layouts",
				Action: r.listPresets,
				Flags:  []cli.Flag{formatFlag()},
			},
			{
				Name:   "info",
				Usage:  "Show volume information",
				Action: r.showInfo,
				Flags:  []cli.Flag{formatFlag()},
			},
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List the files in the root directory",
				Action:  r.listFiles,
				Flags:   []cli.Flag{formatFlag()},
			},
			{
				Name:      "cat",
				Usage:     "Write a file's contents to standard output",
				ArgsUsage: "NAME",
				Action:    r.catFile,
			},
			{
				Name:      "stat",
				Usage:     "Show a file's attributes",
				ArgsUsage: "NAME",
				Action:    r.statFile,
				Flags:     []cli.Flag{formatFlag()},
			},
			{
				Name:      "get",
				Usage:     "Copy a file out of the image",
				ArgsUsage: "NAME [HOST_PATH]",
				Action:    r.getFile,
				Flags:     []cli.Flag{quietFlag()},
			},
			{
				Name:      "put",
				Usage:     "Copy a host file into the image",
				ArgsUsage: "HOST_PATH [NAME]",
				Action:    r.putFile,
				Flags: []cli.Flag{
					quietFlag(),
					&cli.BoolFlag{Name: "read-only", Usage: "set the read-only attribute"},
					&cli.BoolFlag{Name: "hidden", Usage: "set the hidden attribute"},
					&cli.BoolFlag{Name: "system", Usage: "set the system attribute"},
				},
			},
			{
				Name:      "mv",
				Aliases:   []string{"rename"},
				Usage:     "Rename a file",
				ArgsUsage: "OLD_NAME NEW_NAME",
				Action:    r.renameFile,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Delete a file",
				ArgsUsage: "NAME",
				Action:    r.deleteFile,
			},
			{
				Name:   "check",
				Usage:  "Check the volume for inconsistencies",
				Action: r.checkVolume,
				Flags:  []cli.Flag{formatFlag()},
			},
			{
				Name:      "pack",
				Usage:     "Write a compressed copy of the image",
				ArgsUsage: "[OUTPUT]",
				Action:    r.packImage,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "codec", Usage: "gzip or xz", Value: "gzip"},
					&cli.BoolFlag{Name: "force", Usage: "overwrite OUTPUT if it already exists"},
				},
			},
			{
				Name:      "unpack",
				Usage:     "Restore the image from a packed copy",
				ArgsUsage: "INPUT",
				Action:    r.unpackImage,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite the image if it already exists"},
				},
			},
			{
				Name:   "shell",
				Usage:  "Start an interactive session",
				Action: r.runShell,
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "output format: text, csv or yaml",
	}
}

func quietFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "don't show a progress bar",
	}
}

// setup loads the configuration and starts logging. Flags given on the
// command line take precedence over the file.
func (r *runner) setup(c *cli.Context) error {
	cfg, err := config.Load(r.fs, c.String("config"), c.IsSet("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("image") {
		cfg.Image = c.String("image")
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg

	if err = logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return errors.ErrInvalidArgument.Wrap(err)
	}
	return nil
}
