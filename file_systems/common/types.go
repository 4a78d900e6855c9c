// Package common contains definitions of fundamental types and functions used
// across the file system implementation.
package common

// LogicalBlock is a block index relative to the start of a cached region.
type LogicalBlock uint

// SectorID is an absolute sector index in the image.
type SectorID uint32

// ClusterID is an index into the FAT. Data clusters start at 2.
type ClusterID uint32

// FirstDataCluster is the lowest cluster index that maps to the data region.
const FirstDataCluster = ClusterID(2)

// CeilDiv divides rounding up. `divisor` must be nonzero.
func CeilDiv(value, divisor uint) uint {
	return (value + divisor - 1) / divisor
}
