package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/config"
	"github.com/fatimg/fatimg/disks"
	"github.com/fatimg/fatimg/errors"
	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

func unknownFormat(format string) error {
	return errors.ErrInvalidArgument.WithMessage(
		fmt.Sprintf("unknown output format %q; expected text, csv or yaml", format))
}

func writeYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}

func printListing(w io.Writer, files []fatimg.FileSummary, format string) error {
	switch format {
	case "csv":
		return gocsv.Marshal(files, w)
	case "yaml":
		return writeYAML(w, files)
	case "text":
	default:
		return unknownFormat(format)
	}

	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No files in the root directory.")
		return err
	}

	table := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(table, "Name\tSize\t")
	fmt.Fprintln(table, "----\t----\t")
	total := uint64(0)
	for _, file := range files {
		fmt.Fprintf(table, "%s\t%d\t\n", file.Name, file.Size)
		total += uint64(file.Size)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d files, %d bytes\n", len(files), total)
	return err
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func printAttributes(
	w io.Writer,
	attrs fatimg.FileAttributes,
	format string,
	layouts config.OutputConfig,
) error {
	switch format {
	case "yaml":
		return writeYAML(w, attrs)
	case "text", "csv":
	default:
		return unknownFormat(format)
	}

	stamp := func(value uint16, t string) string {
		if value == 0 {
			return "-"
		}
		return t
	}

	table := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(table, "Name:\t%s\n", attrs.Name)
	fmt.Fprintf(table, "Size:\t%d bytes\n", attrs.Size)
	fmt.Fprintf(table, "Attributes:\t%s\n", attrs.Flags)
	fmt.Fprintf(table, "  Read-only:\t%s\n", yesNo(attrs.IsReadOnly()))
	fmt.Fprintf(table, "  Hidden:\t%s\n", yesNo(attrs.IsHidden()))
	fmt.Fprintf(table, "  System:\t%s\n", yesNo(attrs.IsSystem()))
	fmt.Fprintf(table, "  Archive:\t%s\n", yesNo(attrs.IsArchive()))
	fmt.Fprintf(
		table,
		"Created:\t%s %s\n",
		stamp(attrs.CreateDate, attrs.Created.Format(layouts.DateLayout)),
		stamp(attrs.CreateDate, attrs.Created.Format(layouts.TimeLayout)),
	)
	fmt.Fprintf(
		table,
		"Modified:\t%s %s\n",
		stamp(attrs.ModifyDate, attrs.Modified.Format(layouts.DateLayout)),
		stamp(attrs.ModifyDate, attrs.Modified.Format(layouts.TimeLayout)),
	)
	fmt.Fprintf(table, "Accessed:\t%s\n", stamp(attrs.AccessDate, attrs.Accessed.Format(layouts.DateLayout)))
	fmt.Fprintf(table, "First cluster:\t%d\n", attrs.FirstCluster)
	return table.Flush()
}

func printStat(w io.Writer, stat fatimg.FSStat, format string) error {
	switch format {
	case "yaml":
		return writeYAML(w, stat)
	case "text", "csv":
	default:
		return unknownFormat(format)
	}

	label := stat.Label
	if label == "" {
		label = "(none)"
	}

	table := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintf(table, "Label:\t%s\n", label)
	fmt.Fprintf(table, "OEM name:\t%s\n", stat.OEMName)
	fmt.Fprintf(table, "Serial number:\t%04X-%04X\n", stat.SerialNumber>>16, stat.SerialNumber&0xFFFF)
	fmt.Fprintf(table, "Bytes per sector:\t%d\n", stat.BytesPerSector)
	fmt.Fprintf(table, "Sectors per cluster:\t%d\n", stat.SectorsPerCluster)
	fmt.Fprintf(table, "Total sectors:\t%d\n", stat.TotalSectors)
	fmt.Fprintf(table, "Clusters:\t%d free of %d\n", stat.FreeClusters, stat.TotalClusters)
	fmt.Fprintf(table, "Free space:\t%d bytes\n", stat.FreeBytes())
	fmt.Fprintf(table, "FAT copies:\t%d\n", stat.NumFATs)
	fmt.Fprintf(table, "Root entries:\t%d free of %d\n", stat.FreeRootEntries, stat.RootEntries)
	fmt.Fprintf(table, "Files:\t%d\n", stat.Files)
	return table.Flush()
}

func printCheckReport(w io.Writer, report fatimg.CheckReport, format string) error {
	switch format {
	case "yaml":
		return writeYAML(w, report)
	case "text", "csv":
	default:
		return unknownFormat(format)
	}

	if report.Clean() {
		_, err := fmt.Fprintln(w, "No problems found.")
		return err
	}
	for _, name := range report.CorruptChains {
		fmt.Fprintf(w, "corrupt cluster chain: %s\n", name)
	}
	for _, cluster := range report.CrossLinked {
		fmt.Fprintf(w, "cross-linked cluster: %d\n", cluster)
	}
	for _, name := range report.SizeMismatches {
		fmt.Fprintf(w, "size doesn't match chain length: %s\n", name)
	}
	if len(report.LostClusters) > 0 {
		fmt.Fprintf(w, "lost clusters: %d\n", len(report.LostClusters))
	}
	for _, index := range report.FATCopyMismatches {
		fmt.Fprintf(w, "FAT copy %d differs from copy 0\n", index)
	}
	return nil
}

func printPresets(w io.Writer, presets []disks.DiskPreset, format string) error {
	switch format {
	case "csv":
		return gocsv.Marshal(presets, w)
	case "yaml":
		rows := make([]map[string]any, 0, len(presets))
		for _, preset := range presets {
			rows = append(rows, map[string]any{
				"slug":       preset.Slug,
				"name":       preset.Name,
				"size_bytes": preset.TotalSizeBytes(),
			})
		}
		return writeYAML(w, rows)
	case "text":
	default:
		return unknownFormat(format)
	}

	table := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(table, "Slug\tName\tSize\t")
	for _, preset := range presets {
		fmt.Fprintf(table, "%s\t%s\t%d KiB\t\n", preset.Slug, preset.Name, preset.TotalSizeBytes()/1024)
	}
	return table.Flush()
}
