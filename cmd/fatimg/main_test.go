package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testImage = "/images/disk.img"

func runApp(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(fs)
	app.Writer = &out
	app.ErrWriter = io.Discard

	fullArgs := append([]string{"fatimg", "--log-level", "error", "--image", testImage}, args...)
	err := app.Run(fullArgs)
	return out.String(), err
}

func formattedFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/images", 0o755))
	_, err := runApp(t, fs, "format", "--sectors", "8192", "--label", "cli test")
	require.NoError(t, err)
	return fs
}

func TestFormat__ThenInfo(t *testing.T) {
	fs := formattedFs(t)

	info, err := fs.Stat(testImage)
	require.NoError(t, err)
	assert.EqualValues(t, 8192*512, info.Size())

	out, err := runApp(t, fs, "info", "--format", "yaml")
	require.NoError(t, err)

	var stat fatimg.FSStat
	require.NoError(t, yaml.Unmarshal([]byte(out), &stat))
	assert.Equal(t, "CLI TEST", stat.Label)
	assert.EqualValues(t, 8192, stat.TotalSectors)
	assert.EqualValues(t, stat.TotalClusters, stat.FreeClusters)
	assert.EqualValues(t, 0, stat.Files)
}

func TestFormat__Preset(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := runApp(t, fs, "format", "--preset", "hdd-16m")
	require.NoError(t, err)

	info, err := fs.Stat(testImage)
	require.NoError(t, err)
	assert.EqualValues(t, 32768*512, info.Size())
}

func TestFormat__RefusesToOverwrite(t *testing.T) {
	fs := formattedFs(t)

	_, err := runApp(t, fs, "format", "--sectors", "8192")
	assert.ErrorIs(t, err, errors.ErrNameConflict)

	_, err = runApp(t, fs, "format", "--sectors", "8192", "--force")
	assert.NoError(t, err)
}

func TestFormat__NeedsSize(t *testing.T) {
	_, err := runApp(t, afero.NewMemMapFs(), "format")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = runApp(t, afero.NewMemMapFs(), "format", "--preset", "nonexistent")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestPutCatGet(t *testing.T) {
	fs := formattedFs(t)
	payload := strings.Repeat("All work and no play. ", 100)
	require.NoError(t, afero.WriteFile(fs, "/host/story.txt", []byte(payload), 0o644))

	out, err := runApp(t, fs, "put", "--quiet", "/host/story.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Created STORY.TXT")

	out, err = runApp(t, fs, "cat", "story.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = runApp(t, fs, "get", "--quiet", "STORY.TXT", "/host/copy.txt")
	require.NoError(t, err)
	copied, err := afero.ReadFile(fs, "/host/copy.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, string(copied))
}

func TestPut__Attributes(t *testing.T) {
	fs := formattedFs(t)
	require.NoError(t, afero.WriteFile(fs, "/host/a", []byte("a"), 0o644))

	_, err := runApp(t, fs, "put", "-q", "--hidden", "--read-only", "/host/a", "hidden.bin")
	require.NoError(t, err)

	out, err := runApp(t, fs, "stat", "--format", "yaml", "HIDDEN.BIN")
	require.NoError(t, err)

	var attrs struct {
		Name  string   `yaml:"name"`
		Size  int      `yaml:"size"`
		Flags []string `yaml:"flags"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &attrs))
	assert.Equal(t, "HIDDEN.BIN", attrs.Name)
	assert.Equal(t, 1, attrs.Size)
	assert.Equal(t, []string{"read-only", "hidden", "archive"}, attrs.Flags)
}

func TestListRenameDelete(t *testing.T) {
	fs := formattedFs(t)
	require.NoError(t, afero.WriteFile(fs, "/host/one.txt", []byte("1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/host/two.txt", []byte("22"), 0o644))
	for _, path := range []string{"/host/one.txt", "/host/two.txt"} {
		_, err := runApp(t, fs, "put", "-q", path)
		require.NoError(t, err)
	}

	out, err := runApp(t, fs, "ls", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "name,size\nONE.TXT,1\nTWO.TXT,2\n", out)

	_, err = runApp(t, fs, "mv", "one.txt", "two.txt")
	assert.ErrorIs(t, err, errors.ErrNameConflict)
	_, err = runApp(t, fs, "mv", "one.txt", "uno.txt")
	require.NoError(t, err)
	_, err = runApp(t, fs, "rm", "two.txt")
	require.NoError(t, err)

	out, err = runApp(t, fs, "ls", "--format", "yaml")
	require.NoError(t, err)
	var files []fatimg.FileSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &files))
	assert.Equal(t, []fatimg.FileSummary{{Name: "UNO.TXT", Size: 1}}, files)

	out, err = runApp(t, fs, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "UNO.TXT")
	assert.Contains(t, out, "1 files, 1 bytes")
}

func TestCheck__Clean(t *testing.T) {
	fs := formattedFs(t)
	out, err := runApp(t, fs, "check")
	require.NoError(t, err)
	assert.Equal(t, "No problems found.\n", out)
}

func TestErrors__ExitCodes(t *testing.T) {
	fs := formattedFs(t)

	_, err := runApp(t, fs, "cat", "MISSING.TXT")
	assert.ErrorIs(t, err, fatimg.ErrFileNotFound)
	assert.Equal(t, 10+int(errors.ENOENT), errors.ErrnoOf(err).ExitCode())

	_, err = runApp(t, fs, "cat")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = runApp(t, afero.NewMemMapFs(), "ls")
	assert.ErrorIs(t, err, fatimg.ErrImageUnreadable)
}

func TestConfig__SuppliesImage(t *testing.T) {
	fs := formattedFs(t)
	require.NoError(t, afero.WriteFile(
		fs, "/etc/fatimg.yaml", []byte("image: "+testImage+"\noutput:\n  format: csv\n"), 0o644))

	var out bytes.Buffer
	app := newApp(fs)
	app.Writer = &out
	err := app.Run([]string{"fatimg", "--config", "/etc/fatimg.yaml", "--log-level", "error", "ls"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "name,size"), "expected CSV output, got %q", out.String())
}

func TestConfig__Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("nonsense: true\n"), 0o644))

	app := newApp(fs)
	app.Writer = io.Discard
	err := app.Run([]string{"fatimg", "--config", "/bad.yaml", "ls"})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}
