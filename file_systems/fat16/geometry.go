package fat16

import (
	c "github.com/fatimg/fatimg/file_systems/common"
)

// Geometry holds the layout of a volume, derived once from its boot sector.
// All region starts are absolute sector indices.
type Geometry struct {
	BytesPerSector    uint
	SectorsPerCluster uint
	BytesPerCluster   uint
	NumFATs           uint
	SectorsPerFAT     uint
	RootEntryCount    uint
	TotalSectors      uint

	FATStart       c.SectorID
	RootDirStart   c.SectorID
	RootDirSectors uint
	DataStart      c.SectorID
	TotalClusters  uint
}

// NewGeometry computes the volume layout. It never fails; nonsense boot sectors
// produce nonsense geometry, which is what [BootSector.Validate] is for.
func NewGeometry(bs BootSector) Geometry {
	g := Geometry{
		BytesPerSector:    uint(bs.BytesPerSector),
		SectorsPerCluster: uint(bs.SectorsPerCluster),
		NumFATs:           uint(bs.NumFATs),
		SectorsPerFAT:     uint(bs.SectorsPerFAT),
		RootEntryCount:    uint(bs.RootEntryCount),
		TotalSectors:      bs.TotalSectors(),
	}
	g.BytesPerCluster = g.BytesPerSector * g.SectorsPerCluster

	g.FATStart = c.SectorID(bs.ReservedSectors)
	g.RootDirStart = g.FATStart + c.SectorID(g.NumFATs*g.SectorsPerFAT)
	if g.BytesPerSector != 0 {
		g.RootDirSectors = c.CeilDiv(g.RootEntryCount*DirentSize, g.BytesPerSector)
	}
	g.DataStart = g.RootDirStart + c.SectorID(g.RootDirSectors)

	if g.SectorsPerCluster != 0 && g.TotalSectors > uint(g.DataStart) {
		g.TotalClusters = (g.TotalSectors - uint(g.DataStart)) / g.SectorsPerCluster
	}
	return g
}

// DetermineFATVersion determines the version of the FAT file system based on the number
// of clusters on the system. (This is the only proper way to do so.)
func DetermineFATVersion(totalClusters uint) int {
	// These cluster counts, while odd-looking, are correct. They're taken directly from
	// Microsoft's FAT documentation, v1.03, page 14.
	if totalClusters < 4085 {
		return 12
	}
	if totalClusters < 65525 {
		return 16
	}
	return 32
}

// FATCopyStart gives the first sector of FAT copy `index`.
func (g Geometry) FATCopyStart(index uint) c.SectorID {
	return g.FATStart + c.SectorID(index*g.SectorsPerFAT)
}

// FATBytes is the size of one FAT copy.
func (g Geometry) FATBytes() uint {
	return g.SectorsPerFAT * g.BytesPerSector
}

// RootDirBytes is the size of the root directory table, excluding any padding
// at the end of its last sector.
func (g Geometry) RootDirBytes() uint {
	return g.RootEntryCount * DirentSize
}

// SectorOffset converts a sector index into a byte offset in the image.
func (g Geometry) SectorOffset(sector c.SectorID) int64 {
	return int64(sector) * int64(g.BytesPerSector)
}

// ClusterSector gives the first sector of a data cluster. `cluster` must be at
// least 2.
func (g Geometry) ClusterSector(cluster c.ClusterID) c.SectorID {
	return g.DataStart + c.SectorID(uint(cluster-c.FirstDataCluster)*g.SectorsPerCluster)
}

// ClusterOffset converts a data cluster index into a byte offset in the image.
func (g Geometry) ClusterOffset(cluster c.ClusterID) int64 {
	return g.SectorOffset(g.ClusterSector(cluster))
}

// ClustersForSize gives the number of clusters needed to hold `size` bytes.
func (g Geometry) ClustersForSize(size int64) uint {
	if size <= 0 {
		return 0
	}
	return uint((size + int64(g.BytesPerCluster) - 1) / int64(g.BytesPerCluster))
}

// ImageSize is the number of bytes the volume occupies.
func (g Geometry) ImageSize() int64 {
	return int64(g.TotalSectors) * int64(g.BytesPerSector)
}
