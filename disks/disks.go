package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/fatimg/fatimg/errors"
	"github.com/fatimg/fatimg/file_systems/fat16"
	"github.com/gocarina/gocsv"
)

////////////////////////////////////////////////////////////////////////////////
// Presets

// DiskPreset describes a common FAT16 medium that can be formatted by name.
type DiskPreset struct {
	Slug               string `csv:"slug"`
	Name               string `csv:"name"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        uint   `csv:"is_removable"`

	TotalSectors   uint `csv:"total_sectors"`
	BytesPerSector uint `csv:"bytes_per_sector"`
	// SectorsPerCluster may be 0 to have the formatter choose.
	SectorsPerCluster uint `csv:"sectors_per_cluster"`
	RootEntries       uint `csv:"root_entries"`

	// SectorsPerTrack and Heads only matter to firmware that still addresses
	// the disk by CHS.
	SectorsPerTrack uint   `csv:"sectors_per_track"`
	Heads           uint   `csv:"heads"`
	Media           uint8  `csv:"media"`
	Notes           string `csv:"notes"`
}

// TotalSizeBytes gives the size of the image file for this preset.
func (p *DiskPreset) TotalSizeBytes() int64 {
	return int64(p.TotalSectors) * int64(p.BytesPerSector)
}

// FormatOptions converts the preset into options for [fat16.Format]. Fields
// the preset doesn't cover, like the label, are left to the caller.
func (p *DiskPreset) FormatOptions() fat16.FormatOptions {
	return fat16.FormatOptions{
		TotalSectors:      p.TotalSectors,
		BytesPerSector:    p.BytesPerSector,
		SectorsPerCluster: p.SectorsPerCluster,
		RootEntries:       p.RootEntries,
		Media:             p.Media,
		SectorsPerTrack:   p.SectorsPerTrack,
		Heads:             p.Heads,
	}
}

////////////////////////////////////////////////////////////////////////////////

//go:embed disk-presets.csv
var diskPresetsRawCSV string
var diskPresets map[string]DiskPreset

// GetPreset returns the preset with the given slug.
func GetPreset(slug string) (DiskPreset, error) {
	preset, ok := diskPresets[slug]
	if ok {
		return preset, nil
	}
	return DiskPreset{}, errors.ErrInvalidArgument.WithMessage(
		fmt.Sprintf("no predefined disk exists with slug %q", slug))
}

// Presets returns every known preset, smallest first.
func Presets() []DiskPreset {
	presets := make([]DiskPreset, 0, len(diskPresets))
	for _, preset := range diskPresets {
		presets = append(presets, preset)
	}
	sort.Slice(presets, func(i, j int) bool {
		if presets[i].TotalSizeBytes() != presets[j].TotalSizeBytes() {
			return presets[i].TotalSizeBytes() < presets[j].TotalSizeBytes()
		}
		return presets[i].Slug < presets[j].Slug
	})
	return presets
}

func parsePresets(rawCSV string) (map[string]DiskPreset, error) {
	csvReader := csv.NewReader(strings.NewReader(rawCSV))
	csvReader.Comma = '|'

	var rows []DiskPreset
	if err := gocsv.UnmarshalCSV(csvReader, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode disk presets: %w", err)
	}

	presets := make(map[string]DiskPreset, len(rows))
	for i, row := range rows {
		if _, exists := presets[row.Slug]; exists {
			return nil, fmt.Errorf("duplicate definition for disk %q found on row %d", row.Slug, i+1)
		}
		presets[row.Slug] = row
	}
	return presets, nil
}

func init() {
	var err error
	diskPresets, err = parsePresets(diskPresetsRawCSV)
	if err != nil {
		panic(err)
	}
}
